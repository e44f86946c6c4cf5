// Package assetlift resolves assets stored in packed game containers and
// translates them into interchange formats.
//
// A [Session] ties the pieces together: it parses a master index and its
// per-container indices into an entry graph, reads and decompresses entry
// payloads through pooled file handles, builds canonical scene graphs from
// model, skeleton and animation payloads, and writes them as SEModel or Cast
// files. It can also scan a running process's asset pools and classify
// every slot as loaded, placeholder or empty.
//
// # Quick Start
//
// Resolve an index and export every model:
//
//	s, err := assetlift.New(assetlift.WithCodecLibrary("oo2core_9_win64.dll"))
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	entries, err := s.ResolveIndex("/games/title/packages/master.idx")
//	if err != nil {
//	    return err
//	}
//	results := s.ExportAll(ctx, entries, export.FormatCast, "./out")
//
// Failures of individual entries are reported in the results and never stop
// the batch.
//
// # Concurrency
//
// A Session is safe for concurrent use. The resolved graph is immutable and
// shared; each request reads through its own cursor. [Session.Clear] and
// [Session.Close] must not race with in-flight requests.
package assetlift
