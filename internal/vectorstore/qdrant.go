package vectorstore

import (
	"context"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Config holds connection settings for the Qdrant embedding index.
type Config struct {
	Host       string `json:"host"`
	Port       int    `json:"port"`
	Collection string `json:"collection"`
}

// Index is the Qdrant-backed embedding index over memory records. Each
// point carries the record ID plus an agent_id payload field for
// per-agent filtering after hydration.
type Index struct {
	conn        *grpc.ClientConn
	collections pb.CollectionsClient
	points      pb.PointsClient
	collection  string
}

// New dials the Qdrant gRPC endpoint and returns a ready Index.
func New(cfg Config) (*Index, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant connect %s: %w", addr, err)
	}
	collection := cfg.Collection
	if collection == "" {
		collection = "memories"
	}
	return &Index{
		conn:        conn,
		collections: pb.NewCollectionsClient(conn),
		points:      pb.NewPointsClient(conn),
		collection:  collection,
	}, nil
}

// Ensure creates the memory collection if it does not already exist.
func (ix *Index) Ensure(ctx context.Context, dimension uint64) error {
	_, err := ix.collections.Get(ctx, &pb.GetCollectionInfoRequest{CollectionName: ix.collection})
	if err == nil {
		return nil
	}
	_, err = ix.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: ix.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     dimension,
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", ix.collection, err)
	}
	return nil
}

// Upsert inserts or updates the embedding point for one memory record.
func (ix *Index) Upsert(ctx context.Context, recordID, agentID string, vector []float32) error {
	_, err := ix.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: ix.collection,
		Points: []*pb.PointStruct{
			{
				Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: recordID}},
				Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: vector}}},
				Payload: map[string]*pb.Value{
					"agent_id": {Kind: &pb.Value_StringValue{StringValue: agentID}},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("upsert point %s: %w", recordID, err)
	}
	return nil
}

// Hit is a single nearest-neighbor result.
type Hit struct {
	RecordID string
	AgentID  string
	Score    float32
}

// Search returns the top-K nearest points for one agent's records.
func (ix *Index) Search(ctx context.Context, agentID string, vector []float32, topK uint64) ([]*Hit, error) {
	resp, err := ix.points.Search(ctx, &pb.SearchPoints{
		CollectionName: ix.collection,
		Vector:         vector,
		Limit:          topK,
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
		Filter: &pb.Filter{
			Must: []*pb.Condition{
				{
					ConditionOneOf: &pb.Condition_Field{
						Field: &pb.FieldCondition{
							Key: "agent_id",
							Match: &pb.Match{
								MatchValue: &pb.Match_Keyword{Keyword: agentID},
							},
						},
					},
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", ix.collection, err)
	}
	hits := make([]*Hit, 0, len(resp.Result))
	for _, r := range resp.Result {
		hit := &Hit{
			RecordID: r.Id.GetUuid(),
			Score:    r.Score,
		}
		if v, ok := r.Payload["agent_id"]; ok {
			if sv, ok := v.Kind.(*pb.Value_StringValue); ok {
				hit.AgentID = sv.StringValue
			}
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// Close tears down the underlying gRPC connection.
func (ix *Index) Close() error {
	return ix.conn.Close()
}
