// Package feed ingests detection events from the vision unit.
//
// Responsibilities: parsing the unit's JSON line protocol, receiving live
// datagrams over UDP, and replaying recorded captures (build with
// -tags=pcap for real capture files; a mock reader covers default builds).
// Key types: Event, EventSink, UDPListener, PCAPReader.
//
// The package validates estimator preconditions (positive box height,
// non-empty classification) at the boundary so downstream geometry never
// divides by zero. It performs no geometry itself.
package feed
