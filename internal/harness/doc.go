// Package harness runs sync scenarios end to end.
//
// A scenario seeds an in-memory workbook with data folders and record
// files, applies a sync definition compiled from CUE, runs the sync one or
// more times through the real engine, and checks the outcome.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: create_then_update
//	description: "New records are created, then updated in place"
//	specs:
//	  - specs/blog.cue
//	sync: blog
//	folders:
//	  - id: posts
//	  - id: cms
//	    schema: { idColumnRemoteId: uid }
//	files:
//	  posts/1.json: '{"id":"1","title":"Hello"}'
//	steps:
//	  - expect: { created: 1, updated: 0 }
//	  - put:
//	      posts/1.json: '{"id":"1","title":"Hello again"}'
//	    expect: { created: 0, updated: 1 }
//	assertions:
//	  - type: file_equals
//	    path: cms/new-0001.json
//	    content: '{"name":"Hello again"}'
//
// Spec paths are relative to the scenario file.
//
// # Assertion Types
//
//   - file_equals: a file exists with exactly the given content
//   - file_fields: a record file contains the given fields (subset match)
//   - file_absent: no file exists at the path
//   - file_count: a folder holds exactly N files
//   - commit_count: exactly N commits were written
//   - remote_mapping: a source record is correlated to a destination
//
// # Deterministic Testing
//
// Every scenario runs against a fresh in-memory SQLite store with
// sequential ids (sync-0001, new-0001, run-0001) and a deterministic
// clock, so the same scenario always writes the same files. RunWithGolden
// compares the step results and final workbook files against a golden
// snapshot.
package harness
