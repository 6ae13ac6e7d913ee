package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"outpost.world/internal/persistence/journal"
	"outpost.world/internal/protocol"
	"outpost.world/internal/world"
)

// Replays a client event journal: per-type counts, and optionally the
// fog coverage a client would have ended up with after all reveals.
func main() {
	var (
		eventsDir = flag.String("events", "./data/events", "events dir containing events-*.jsonl.zst")
		chunkSize = flag.Int("chunk_size", 512, "chunk extent for fog reconstruction")
		showFog   = flag.Bool("fog", false, "reconstruct fog coverage from AREA_EXPLORED events")
	)
	flag.Parse()

	files, err := listEventFiles(*eventsDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list events:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no event files in", *eventsDir)
		os.Exit(1)
	}

	counts := map[string]int{}
	fog := world.NewFogEngine(*chunkSize)
	var total int

	for _, path := range files {
		entries, err := journal.Read(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "read %s: %v\n", filepath.Base(path), err)
			os.Exit(1)
		}
		for _, e := range entries {
			counts[e.Type]++
			total++
			if !*showFog {
				continue
			}
			switch e.Type {
			case protocol.TypeWorldJoined:
				var m protocol.WorldJoinedMsg
				if err := json.Unmarshal(e.Raw, &m); err == nil {
					_ = fog.Restore(m.Fog)
				}
			case protocol.TypeChunksData:
				var m protocol.ChunksDataMsg
				if err := json.Unmarshal(e.Raw, &m); err == nil {
					for _, p := range m.Chunks {
						fog.EnsureMask(world.ChunkKey{CX: p.CX, CY: p.CY})
					}
				}
			case protocol.TypeAreaExplored:
				var m protocol.AreaExploredMsg
				if err := json.Unmarshal(e.Raw, &m); err == nil {
					// Replay the reveal already settled.
					fog.ApplyReveal(m.X, m.Y, m.Radius, time.Millisecond, time.Unix(0, 0))
					fog.Tick(time.Unix(1, 0))
				}
			}
		}
	}

	fmt.Printf("%d events across %d files\n", total, len(files))
	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Printf("%8d  %s\n", counts[t], t)
	}

	if *showFog {
		printCoverage(fog, *chunkSize)
	}
}

func printCoverage(fog *world.FogEngine, chunkSize int) {
	blobs := fog.Serialize()
	keys := make([]string, 0, len(blobs))
	for k := range blobs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Printf("fog masks: %d\n", len(keys))
	for _, ks := range keys {
		k, err := world.ParseKey(ks)
		if err != nil {
			continue
		}
		m, ok := fog.Mask(k)
		if !ok {
			continue
		}
		var clear int
		for _, v := range m.Opacity {
			if v == 0 {
				clear++
			}
		}
		pct := 100 * float64(clear) / float64(chunkSize*chunkSize)
		fmt.Printf("%10s  %5.1f%% explored\n", ks, pct)
	}
}

func listEventFiles(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "events-") && strings.HasSuffix(name, ".jsonl.zst") {
			out = append(out, filepath.Join(dir, name))
		}
	}
	sort.Strings(out)
	return out, nil
}
