// Package model defines the domain types shared by the foldersync packages.
//
// A Sync owns one or more TableMappings. Each TableMapping pairs a source and
// a destination data folder with an ordered list of ColumnMappings and an
// optional RecordMatching rule. Records on either side are represented per run
// as ConnectorRecords parsed from stored files.
//
// Two pieces of state outlive a run:
//   - MatchKey: ephemeral match value index, cleared and rebuilt every run
//   - RemoteMapping: durable source → destination identity correlation
//
// # Sealed Variants
//
// ColumnMapping is a sealed interface: only LocalMapping and
// ForeignKeyLookupMapping implement it. DestinationID distinguishes a pending
// placeholder path from a published remote identifier so callers never have
// to guess which meaning a stored string carries.
package model
