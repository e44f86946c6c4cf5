// Package index resolves container indices into a graph of containers,
// resource files and asset entries.
//
// A master index names the containers and assigns resource files to them.
// Two incompatible master schemas exist: Schema A (big-endian, many
// containers, flat and shared resource tables) and Schema B (little-endian,
// a single container). Each container has its own index file listing entry
// records whose field order and byte order depend on the schema.
//
// A Graph is immutable after Load and safe for concurrent use.
package index
