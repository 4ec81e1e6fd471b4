package vectorstore

import (
	"log/slog"
	"strconv"

	"github.com/qdrant/go-client/qdrant"
)

const dataTypeKey = "data_type"

func toPointStruct(p Point) *qdrant.PointStruct {
	return &qdrant.PointStruct{
		Id: &qdrant.PointId{PointIdOptions: &qdrant.PointId_Uuid{Uuid: p.ID}},
		Vectors: &qdrant.Vectors{
			VectorsOptions: &qdrant.Vectors_Vector{
				Vector: &qdrant.Vector{Data: p.Vector},
			},
		},
		Payload: toQdrantPayload(p.Payload),
	}
}

func toQdrantPayload(p Payload) map[string]*qdrant.Value {
	switch p.Type {
	case DataTypeFileChunk:
		f := p.File
		return map[string]*qdrant.Value{
			dataTypeKey:          qdrant.NewValueString(string(DataTypeFileChunk)),
			"filepath":           qdrant.NewValueString(f.Filepath),
			"file_content_chunk": qdrant.NewValueString(f.FileContentChunk),
			"last_modified":      qdrant.NewValueString(f.LastModified),
			"chunk_index":        qdrant.NewValueInt(int64(f.ChunkIndex)),
			"total_chunks":       qdrant.NewValueInt(int64(f.TotalChunks)),
			"repository_path":    qdrant.NewValueString(f.RepositoryPath),
		}
	case DataTypeCommitInfo:
		c := p.Commit
		return map[string]*qdrant.Value{
			dataTypeKey:             qdrant.NewValueString(string(DataTypeCommitInfo)),
			"commit_oid":            qdrant.NewValueString(c.CommitOID),
			"commit_message":        qdrant.NewValueString(c.CommitMessage),
			"commit_author_name":    qdrant.NewValueString(c.CommitAuthorName),
			"commit_author_email":   qdrant.NewValueString(c.CommitAuthorEmail),
			"commit_date":           qdrant.NewValueString(c.CommitDate),
			"changed_files_summary": stringListValue(c.ChangedFilesSummary),
			"parent_oids":           stringListValue(c.ParentOIDs),
			"repository_path":       qdrant.NewValueString(c.RepositoryPath),
		}
	case DataTypeDiffChunk:
		d := p.Diff
		return map[string]*qdrant.Value{
			dataTypeKey:       qdrant.NewValueString(string(DataTypeDiffChunk)),
			"commit_oid":      qdrant.NewValueString(d.CommitOID),
			"filepath":        qdrant.NewValueString(d.Filepath),
			"diff_chunk":      qdrant.NewValueString(d.DiffChunk),
			"chunk_index":     qdrant.NewValueInt(int64(d.ChunkIndex)),
			"total_chunks":    qdrant.NewValueInt(int64(d.TotalChunks)),
			"change_type":     qdrant.NewValueString(string(d.ChangeType)),
			"repository_path": qdrant.NewValueString(d.RepositoryPath),
		}
	default:
		return map[string]*qdrant.Value{}
	}
}

func stringListValue(items []string) *qdrant.Value {
	values := make([]*qdrant.Value, len(items))
	for i, it := range items {
		values[i] = qdrant.NewValueString(it)
	}
	return qdrant.NewValueList(&qdrant.ListValue{Values: values})
}

func stringListFromValue(v *qdrant.Value) []string {
	list := v.GetListValue()
	if list == nil {
		return nil
	}
	out := make([]string, 0, len(list.GetValues()))
	for _, item := range list.GetValues() {
		out = append(out, item.GetStringValue())
	}
	return out
}

func fromQdrantPayload(payload map[string]*qdrant.Value) (Payload, bool) {
	dt := DataType(payload[dataTypeKey].GetStringValue())
	switch dt {
	case DataTypeFileChunk:
		return NewFileChunkPayload(FileChunkPayload{
			Filepath:         payload["filepath"].GetStringValue(),
			FileContentChunk: payload["file_content_chunk"].GetStringValue(),
			LastModified:     payload["last_modified"].GetStringValue(),
			ChunkIndex:       int(payload["chunk_index"].GetIntegerValue()),
			TotalChunks:      int(payload["total_chunks"].GetIntegerValue()),
			RepositoryPath:   payload["repository_path"].GetStringValue(),
		}), true
	case DataTypeCommitInfo:
		return NewCommitInfoPayload(CommitInfoPayload{
			CommitOID:           payload["commit_oid"].GetStringValue(),
			CommitMessage:       payload["commit_message"].GetStringValue(),
			CommitAuthorName:    payload["commit_author_name"].GetStringValue(),
			CommitAuthorEmail:   payload["commit_author_email"].GetStringValue(),
			CommitDate:          payload["commit_date"].GetStringValue(),
			ChangedFilesSummary: stringListFromValue(payload["changed_files_summary"]),
			ParentOIDs:          stringListFromValue(payload["parent_oids"]),
			RepositoryPath:      payload["repository_path"].GetStringValue(),
		}), true
	case DataTypeDiffChunk:
		return NewDiffChunkPayload(DiffChunkPayload{
			CommitOID:      payload["commit_oid"].GetStringValue(),
			Filepath:       payload["filepath"].GetStringValue(),
			DiffChunk:      payload["diff_chunk"].GetStringValue(),
			ChunkIndex:     int(payload["chunk_index"].GetIntegerValue()),
			TotalChunks:    int(payload["total_chunks"].GetIntegerValue()),
			ChangeType:     ChangeType(payload["change_type"].GetStringValue()),
			RepositoryPath: payload["repository_path"].GetStringValue(),
		}), true
	default:
		slog.Warn("vectorstore: skipping point with unknown data_type", "data_type", strconv.Quote(string(dt)))
		return Payload{}, false
	}
}

func fromScoredPoint(r *qdrant.ScoredPoint) (Point, bool) {
	payload, ok := fromQdrantPayload(r.GetPayload())
	if !ok {
		return Point{}, false
	}
	return Point{
		ID:      r.GetId().GetUuid(),
		Vector:  vectorFromScored(r),
		Payload: payload,
	}, true
}

func fromRetrievedPoint(r *qdrant.RetrievedPoint) (Point, bool) {
	payload, ok := fromQdrantPayload(r.GetPayload())
	if !ok {
		return Point{}, false
	}
	return Point{
		ID:      r.GetId().GetUuid(),
		Vector:  vectorFromRetrieved(r),
		Payload: payload,
	}, true
}

func vectorFromScored(r *qdrant.ScoredPoint) []float32 {
	v := r.GetVectors()
	if v == nil {
		return nil
	}
	if dense := v.GetVector(); dense != nil {
		return dense.GetData()
	}
	return nil
}

func vectorFromRetrieved(r *qdrant.RetrievedPoint) []float32 {
	v := r.GetVectors()
	if v == nil {
		return nil
	}
	if dense := v.GetVector(); dense != nil {
		return dense.GetData()
	}
	return nil
}
