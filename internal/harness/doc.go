// Package harness runs card scenarios: scripted sequences of SELECT, command
// and reset steps with expected status words and data.
//
// Every exchange is recorded in a transcript. Status words from the assertion
// block are decoded back to source sites using the line index of the
// preprocessed sources the scenario names, so a failing on-card check is
// reported as file:line rather than a bare 62xx.
//
// # Scenario Format
//
//	name: global_array_visible
//	description: "A client can read a global array through the server's capability"
//	profile: card.cue          # optional; built-in profile when omitted
//	sources:                   # optional; preprocessed inputs used for decoding
//	  - ../applets/memclient/checks.go.in
//	steps:
//	  - select: server
//	  - send: "80 02 02 00 02 00 0A"
//	    expect: { sw: "9000" }
//	  - select: client
//	  - send: "80 10 00 00 08 A0 00 00 00 62 03 01 01"
//	    expect: { sw: "9000", data: "0203000A" }
//	  - reset: true
//	assertions:
//	  - type: sw_count
//	    sw: "6F00"
//	    count: 0
//
// Paths are relative to the scenario file. A select step names a component
// of the profile or gives its AID in hex.
//
// # Determinism
//
// Local runs use a deterministic clock, so sequence numbers restart at 1 for
// every run and traces compare byte for byte against golden files.
package harness
