// Package main provides the candle weights tooling CLI.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/lo-ferris/candle/internal/gguf"
	"github.com/lo-ferris/candle/internal/nn"
	"github.com/lo-ferris/candle/internal/safetensors"
	"github.com/lo-ferris/candle/internal/tensor"
)

const version = "v0.1.0-dev"

var log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
	With().Timestamp().Logger()

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "version":
		fmt.Printf("candle %s\n", version)
	case "tensors":
		err = runTensors(os.Args[2:])
	case "shard":
		err = runShard(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: candle <command> [arguments]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  tensors <file>              List tensors in a .safetensors or .gguf file")
	fmt.Fprintln(os.Stderr, "  shard <file> <name> [opts]  Extract one rank's slice of a stored tensor")
	fmt.Fprintln(os.Stderr, "  version                     Show version")
}

func runTensors(args []string) error {
	fs := flag.NewFlagSet("tensors", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("tensors: expected exactly one file argument")
	}
	path := fs.Arg(0)

	if filepath.Ext(path) == ".gguf" {
		return listGGUF(path)
	}
	return listSafetensors(path)
}

func listSafetensors(path string) error {
	f, err := safetensors.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var total int64
	for _, name := range f.Names() {
		info, err := f.Info(name)
		if err != nil {
			return err
		}
		total += info.ByteSize()
		fmt.Printf("%-48s %-5s %-16v %s\n", name, info.DType, info.Shape, humanize.IBytes(uint64(info.ByteSize())))
	}
	log.Info().
		Int("tensors", len(f.Names())).
		Int("metadata_keys", len(f.Metadata())).
		Str("total", humanize.IBytes(uint64(total))).
		Msg("read safetensors header")
	return nil
}

func listGGUF(path string) error {
	f, err := gguf.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var total int64
	for _, name := range f.Names() {
		info, err := f.Info(name)
		if err != nil {
			return err
		}
		total += info.ByteSize()
		fmt.Printf("%-48s %-5s %-16v %s\n", name, info.DType, info.Shape(), humanize.IBytes(uint64(info.ByteSize())))
	}
	log.Info().
		Int("tensors", len(f.Names())).
		Int("metadata_keys", len(f.Metadata())).
		Str("total", humanize.IBytes(uint64(total))).
		Msg("read gguf header")
	return nil
}

func runShard(args []string) error {
	fs := flag.NewFlagSet("shard", flag.ExitOnError)
	dim := fs.Int("dim", 0, "dimension to slice (0 or 1)")
	rank := fs.Int("rank", 0, "rank to extract")
	worldSize := fs.Int("world-size", 1, "number of ranks")
	out := fs.String("o", "shard.safetensors", "output file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("shard: expected <file> <name> arguments")
	}
	path, name := fs.Arg(0), fs.Arg(1)

	vb, err := nn.NewVarBuilderFromSafetensors(tensor.Float32, tensor.CPU, path)
	if err != nil {
		return err
	}
	defer vb.Close()

	start := time.Now()
	slice, err := vb.GetSharded(name, nn.Shard{Dim: *dim, Rank: *rank, WorldSize: *worldSize})
	if err != nil {
		return err
	}
	if err := safetensors.Write(*out, map[string]*tensor.Tensor{name: slice}, map[string]string{
		"shard.dim":        fmt.Sprint(*dim),
		"shard.rank":       fmt.Sprint(*rank),
		"shard.world_size": fmt.Sprint(*worldSize),
	}); err != nil {
		return err
	}

	log.Info().
		Str("name", name).
		Str("shape", fmt.Sprint(slice.Shape())).
		Str("size", humanize.IBytes(uint64(slice.Storage().ByteSize()))).
		Dur("elapsed", time.Since(start)).
		Str("out", *out).
		Msg("wrote shard")
	return nil
}
