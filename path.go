package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"git.fiblab.net/sim/dualtraffic/roadnet"
)

// 文件路径或MongoDB集合
type Path struct {
	File string
	DB   string
	Coll string
}

func NewPath(filePathOrColl string) (*Path, error) {
	// 检查filePathOrColl是否作为文件存在
	_, err := os.Stat(filePathOrColl)
	if err == nil {
		return &Path{
			File: filePathOrColl,
		}, nil
	}
	// OSM扩展名的路径只能是文件
	if isOSMFile(filePathOrColl) {
		return nil, fmt.Errorf("network file %s: %w", filePathOrColl, err)
	}
	return newCollPath(filePathOrColl)
}

// 输出路径，文件可以尚不存在，以.json结尾即视为文件
func NewOutputPath(filePathOrColl string) (*Path, error) {
	s := strings.TrimSpace(filePathOrColl)
	if strings.EqualFold(filepath.Ext(s), ".json") {
		return &Path{File: s}, nil
	}
	return newCollPath(s)
}

func newCollPath(filePathOrColl string) (*Path, error) {
	dbDotColl := strings.TrimSpace(filePathOrColl)
	if dbDotColl == "" {
		return nil, nil
	}
	splitted := strings.Split(dbDotColl, ".")
	if len(splitted) != 2 || splitted[0] == "" || splitted[1] == "" {
		return nil, fmt.Errorf("dbDotColl is invalid: %s", dbDotColl)
	}
	return &Path{
		DB:   splitted[0],
		Coll: splitted[1],
	}, nil
}

func (p *Path) IsFile() bool {
	return p.File != ""
}

func (p *Path) GetDb() string {
	return p.DB
}

func (p *Path) GetColl() string {
	return p.Coll
}

func isOSMFile(path string) bool {
	_, err := (&Path{File: path}).OSMFormat()
	return err == nil
}

// 按扩展名判断OSM文件格式
func (p *Path) OSMFormat() (roadnet.OSMFormat, error) {
	switch strings.ToLower(filepath.Ext(p.File)) {
	case ".osm", ".xml":
		return roadnet.OSM_XML, nil
	case ".pbf":
		return roadnet.OSM_PBF, nil
	default:
		return 0, fmt.Errorf("unknown osm file extension: %s [.osm, .xml, .pbf]", p.File)
	}
}

func (p *Path) String() string {
	if p.IsFile() {
		return p.File
	}
	return p.DB + "." + p.Coll
}
