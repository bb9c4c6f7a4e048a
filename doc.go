/*
Package aqua persists in-memory object graphs as documents in an embedded
store (Bolt, or memory for tests).

A graph is packed into a tree of nodes plus two side tables, together called
a Rat: the externals (objects stored as their own documents and referenced by
stubs) and the attachments (binary bodies stored next to the document).
Unpacking rebuilds the graph, leaving externals as lazy stubs that load on
first use.

We implement:

1. A type registry. Types are declared with DefineType, listing their fields
in order and choosing how they are stored: inline (Plain, or TypedInit for
types with an init codec) or, for Objects, embedded or as an external stub
with cached methods.

2. The packer, which walks a value depth-first, classifies every value and
collects externals and attachments along with the paths of their stubs.

3. Commit orchestration. Committing an Object assigns it an id, commits its
externals first (failures become warnings), patches their ids into the tree,
stores attachments and finally stores the root document.

4. The unpacker and stubs. Stubs answer cached methods without loading and
resolve once on any other access.

# Technical Details

**Buckets.**
Each database (by default, the lower-cased type name) is a root bucket with
two nested buckets, "docs" and "attachments".

**Wire format.**
Nodes encode to JSON as bare strings, {"class","init","ivars"} objects and
{"class":"Stub","init":{"class","id","methods"}} stubs. Documents may also be
stored as MsgPack; both encodings round-trip the tree exactly.

**Document value**: flags (uvarint), update sequence (uvarint), body size
(uvarint), then the encoded body. The revision is the sequence and an xxhash of
the body, and must match on update.

**Attachment value**: CBOR meta record (content type, length, compression tag,
blake3 digest) as varbytes, then the body, optionally compressed with LZ4 or
zstd.
*/
package aqua
