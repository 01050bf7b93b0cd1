package main

import (
	"errors"
	"flag"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"git.fiblab.net/sim/dualtraffic/router"
	"github.com/sirupsen/logrus"
)

var (
	benchmarkCount = flag.Int("benchmark.count", 1000, "the random routing count for benchmark")
	benchmarkSeed  = flag.Int64("benchmark.seed", 0, "the seed for benchmark")
	benchmarkCPU   = flag.Int("benchmark.cpu", 1, "the cpu count for benchmark")
)

type routeRequest struct {
	start, goal int
}

// 随机生成的街道对
func benchmarkRequests(n, count int, seed int64) []routeRequest {
	e := rand.New(rand.NewSource(seed))
	reqs := make([]routeRequest, count)
	for i := range reqs {
		reqs[i] = routeRequest{start: e.Intn(n), goal: e.Intn(n)}
	}
	return reqs
}

// 执行一次规划，返回是否找到路径
func benchmarkOne(r *router.Router, req routeRequest) bool {
	_, _, err := r.FindPath(req.start, req.goal)
	if err != nil {
		if !errors.Is(err, router.ErrNoPath) {
			log.Error("benchmark failed, err:", err)
		}
		return false
	}
	return true
}

func runBenchmark(r *router.Router) {
	log.Logger.SetLevel(logrus.WarnLevel)
	// 随机生成benchmarkCount个路径规划请求，每个请求的起点和终点都是随机的
	reqs := benchmarkRequests(r.Dual().Len(), *benchmarkCount, *benchmarkSeed)

	// 开始benchmark
	start := time.Now()
	var wg sync.WaitGroup
	var success atomic.Int32
	if *benchmarkCPU == 1 {
		for _, req := range reqs {
			if benchmarkOne(r, req) {
				success.Add(1)
			}
		}
	} else {
		// 设置cpu数量
		runtime.GOMAXPROCS(*benchmarkCPU)
		wg.Add(len(reqs))
		for _, req := range reqs {
			go func(req routeRequest) {
				defer wg.Done()
				if benchmarkOne(r, req) {
					success.Add(1)
				}
			}(req)
		}
		wg.Wait()
	}
	timeCost := time.Since(start) * time.Duration(*benchmarkCPU)
	log.Error(
		"benchmark finished", "\n",
		"streets:", r.Dual().Len(), "\n",
		"count:", *benchmarkCount, "\n",
		"time:", timeCost, "\n",
		"avg:", timeCost/time.Duration(max(*benchmarkCount, 1)), "\n",
		"success:", success.Load(), "\n",
	)
}
