package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"git.fiblab.net/sim/dualtraffic/roadnet"
	"github.com/paulmach/orb"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// 延迟创建的MongoDB客户端，只有用到数据库时才连接
type lazyClient struct {
	uri    string
	client *mongo.Client
}

func (c *lazyClient) Get(ctx context.Context) (*mongo.Client, error) {
	if c.client != nil {
		return c.client, nil
	}
	if c.uri == "" {
		return nil, fmt.Errorf("mongo_uri is required")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(c.uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	c.client = client
	return client, nil
}

func (c *lazyClient) Coll(ctx context.Context, p *Path) (*mongo.Collection, error) {
	client, err := c.Get(ctx)
	if err != nil {
		return nil, err
	}
	return client.Database(p.GetDb()).Collection(p.GetColl()), nil
}

func (c *lazyClient) Close(ctx context.Context) {
	if c.client != nil {
		if err := c.client.Disconnect(ctx); err != nil {
			log.Warnf("mongo disconnect: %v", err)
		}
	}
}

// 方格路网参数，格式 {rows}x{cols}
func parseGrid(s string) (rows, cols int, err error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(s)), "x")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("grid is invalid: %s [format: {rows}x{cols}]", s)
	}
	if rows, err = strconv.Atoi(parts[0]); err != nil {
		return 0, 0, fmt.Errorf("grid rows: %w", err)
	}
	if cols, err = strconv.Atoi(parts[1]); err != nil {
		return 0, 0, fmt.Errorf("grid cols: %w", err)
	}
	if rows <= 0 || cols <= 0 || rows*cols < 3 {
		return 0, 0, fmt.Errorf("grid %dx%d is too small", rows, cols)
	}
	return rows, cols, nil
}

// 读取路网，优先使用方格路网，其次为OSM文件或MongoDB集合
func loadNetwork(ctx context.Context, client *lazyClient, networkPath *Path, grid string, spacing float64) (*roadnet.Network, error) {
	var net *roadnet.Network
	switch {
	case grid != "":
		rows, cols, err := parseGrid(grid)
		if err != nil {
			return nil, err
		}
		net = roadnet.NewGrid(rows, cols, orb.Point{GRID_ORIGIN_LON, GRID_ORIGIN_LAT}, spacing)
		log.Infof("generated %dx%d grid network", rows, cols)
	case networkPath == nil:
		return nil, fmt.Errorf("either -network or -grid is required")
	case networkPath.IsFile():
		format, err := networkPath.OSMFormat()
		if err != nil {
			return nil, err
		}
		f, err := os.Open(networkPath.File)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		if net, err = roadnet.LoadOSM(ctx, f, format); err != nil {
			return nil, fmt.Errorf("load %s: %w", networkPath, err)
		}
	default:
		coll, err := client.Coll(ctx, networkPath)
		if err != nil {
			return nil, err
		}
		if net, err = roadnet.LoadMongo(ctx, coll); err != nil {
			return nil, fmt.Errorf("load %s: %w", networkPath, err)
		}
	}
	if removed := net.Prune(); removed > 0 {
		log.Infof("pruned %d isolated intersections", removed)
	}
	return net, nil
}
