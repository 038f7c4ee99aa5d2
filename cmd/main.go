package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/midgardmaps/midgard/mapfile"
	"github.com/midgardmaps/midgard/voxel"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/encoding/json"
)

var (
	// The midgard version number. Set at build.
	version = "v0.1.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "midgard_info",
		Help:        "Midgard information.",
		ConstLabels: prometheus.Labels{"version": version},
	})
)

type config struct {
	Input     string   `cli:"" env:"MIDGARD_INPUT"       help:"Path to the map file to read."`
	Output    string   `cli:"" env:"MIDGARD_OUTPUT"      help:"Path where the rewritten map file is saved."`
	RemoveIDs []string `cli:"" env:"MIDGARD_REMOVE_IDS"  help:"Comma separated submap ids to drop before saving."`
	Verify    bool     `cli:"" env:"MIDGARD_VERIFY"      help:"Fully decode every block instead of only listing the manifest."`
	LogLevel  string   `cli:"" env:"MIDGARD_LOG_LEVEL"   help:"Log level (debug|info|warning|error)."`
	LogIndent bool     `cli:"" env:"MIDGARD_LOG_INDENT"  help:"Indent logs."`
	Version   bool     `cli:"" env:"-"                   help:"Show version."`
	Help      bool     `cli:"" env:"-"                   help:"Show help."`
}

func main() {
	conf := config{
		LogLevel: logs.InfoLevel.String(),
	}

	// set the information gauge to 1, useful for SUM query
	infoGauge.Set(1)

	cli.Register().
		Help("Inspects, verifies and rewrites midgard map files.").
		Options(&conf)
	cli.Load()

	if conf.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	if conf.LogIndent {
		logs.Encoder = func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
	}
	errors.Encoder = json.Marshal

	if conf.Input == "" {
		logs.Fatal(errors.New("no input map file given"))
	}

	manifest, err := readManifest(conf.Input)
	if err != nil {
		logs.Fatal(errors.New("reading map file failed").Wrap(err))
	}

	for _, record := range manifest.Submaps {
		var words int
		for _, b := range record.Blocks {
			words += b.WordCount
		}
		logs.WithTag("submap_id", record.ID).
			WithTag("submap_uuid", record.UUID).
			WithTag("voxel_size", record.VoxelSize).
			WithTag("voxels_per_side", record.VoxelsPerSide).
			WithTag("block_count", len(record.Blocks)).
			WithTag("word_count", words).
			Info("submap")
	}

	if !conf.Verify && conf.Output == "" {
		return
	}

	switch manifest.Variant {
	case mapfile.VariantName[voxel.ClassVoxel]():
		err = process[voxel.ClassVoxel](conf)
	case mapfile.VariantName[voxel.ClassUncertaintyVoxel]():
		err = process[voxel.ClassUncertaintyVoxel](conf)
	default:
		err = errors.New("unknown voxel variant").
			WithTag("variant", manifest.Variant)
	}
	if err != nil {
		logs.Fatal(err)
	}
}

func readManifest(name string) (mapfile.Manifest, error) {
	f, err := os.Open(name)
	if err != nil {
		return mapfile.Manifest{}, err
	}
	defer f.Close()

	return mapfile.ReadManifest(f)
}

func process[V voxel.Variant](conf config) error {
	f, err := os.Open(conf.Input)
	if err != nil {
		return errors.New("opening map file failed").Wrap(err)
	}
	defer f.Close()

	collection, err := mapfile.Load[V](f)
	if err != nil {
		return errors.New("loading map file failed").Wrap(err)
	}
	logs.WithTag("submap_count", collection.Count()).
		Info("map file verified")

	if conf.Output == "" {
		return nil
	}

	for _, raw := range conf.RemoveIDs {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return errors.New("invalid submap id").
				Wrap(err).
				WithTag("submap_id", raw)
		}
		if !collection.RemoveSubmap(uint32(id)) {
			logs.WithTag("submap_id", id).
				Warn("submap not in map file")
		}
	}

	out, err := os.Create(conf.Output)
	if err != nil {
		return errors.New("creating output map file failed").Wrap(err)
	}
	defer out.Close()

	if err := mapfile.Save(out, collection); err != nil {
		return errors.New("saving map file failed").Wrap(err)
	}
	logs.WithTag("submap_count", collection.Count()).
		WithTag("output", conf.Output).
		Info("map file written")
	return nil
}
