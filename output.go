package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"git.fiblab.net/sim/dualtraffic/sim"
)

// 写出仿真结果：JSON文件，或MongoDB集合中的一个文档（_id为run id）
func writeResult(ctx context.Context, client *lazyClient, output *Path, res *sim.Result) error {
	if output == nil {
		log.Warn("no output path, result discarded")
		return nil
	}
	if output.IsFile() {
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
		if err := os.WriteFile(output.File, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", output, err)
		}
	} else {
		coll, err := client.Coll(ctx, output)
		if err != nil {
			return err
		}
		if _, err := coll.InsertOne(ctx, res); err != nil {
			return fmt.Errorf("insert result into %s: %w", output, err)
		}
	}
	log.Infof("result %s written to %s", res.RunID, output)
	return nil
}
