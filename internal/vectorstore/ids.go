package vectorstore

import "github.com/google/uuid"

// idNamespace is a fixed namespace UUID used to derive a valid point UUID
// from the pipeline's logical, content-addressed point keys (e.g.
// "file:path/to/foo.go:chunk:3"). Qdrant point ids must be an unsigned
// integer or a UUID; deriving one deterministically from the logical key
// keeps upserts idempotent without the pipeline needing to track a
// key-to-UUID mapping anywhere.
var idNamespace = uuid.MustParse("8f14e45f-ceea-467e-95f0-3c74a2a22e51")

// PointID derives the stable UUID used as a Point's ID from a logical,
// human-readable key. The same key always yields the same UUID.
func PointID(logicalKey string) string {
	return uuid.NewSHA1(idNamespace, []byte(logicalKey)).String()
}
