package roadnet

import (
	"context"
	"fmt"

	"github.com/paulmach/orb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// 路段端点
type EndpointDoc struct {
	ID  int64   `bson:"id"`
	Lat float64 `bson:"lat"`
	Lon float64 `bson:"lon"`
}

// 数据库中的一条路段
type SegmentDoc struct {
	From EndpointDoc `bson:"from"`
	To   EndpointDoc `bson:"to"`
}

// 从MongoDB集合读取路段，构建路网
func LoadMongo(ctx context.Context, coll *mongo.Collection) (*Network, error) {
	cur, err := coll.Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("find segments in %s: %w", coll.Name(), err)
	}
	defer cur.Close(ctx)
	docs := make([]SegmentDoc, 0)
	for cur.Next(ctx) {
		var doc SegmentDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode segment: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	n, err := FromSegmentDocs(docs)
	if err != nil {
		return nil, err
	}
	log.Infof("mongo loaded from %s: %d intersections, %d segments",
		coll.Name(), n.NumIntersections(), n.NumSegments())
	return n, nil
}

func FromSegmentDocs(docs []SegmentDoc) (*Network, error) {
	n := NewNetwork()
	for _, doc := range docs {
		if doc.From.ID == doc.To.ID {
			log.Warnf("skip self loop segment at intersection %d", doc.From.ID)
			continue
		}
		n.AddIntersection(doc.From.ID, orb.Point{doc.From.Lon, doc.From.Lat})
		n.AddIntersection(doc.To.ID, orb.Point{doc.To.Lon, doc.To.Lat})
		if err := n.AddSegment(doc.From.ID, doc.To.ID); err != nil {
			return nil, err
		}
	}
	return n, nil
}
