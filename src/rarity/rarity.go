package rarity

import (
	"bufio"
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/OneOfOne/xxhash"
	"github.com/stake-plus/catchfleet/src/webclient"
)

// Tier is the rarity bucket a confirmed catch is counted in.
type Tier string

const (
	Normal    Tier = "normal"
	Legendary Tier = "legendary"
	Mythical  Tier = "mythical"
)

var (
	//go:embed lists/legendary.txt
	defaultLegendary []byte
	//go:embed lists/mythical.txt
	defaultMythical []byte
)

// Table is an immutable name→tier lookup. Names match exactly as received.
type Table struct {
	legendary map[string]struct{}
	mythical  map[string]struct{}
}

// NewTable builds a table from explicit name lists.
func NewTable(legendary, mythical []string) *Table {
	return &Table{legendary: toSet(legendary), mythical: toSet(mythical)}
}

// Default returns the table built from the embedded lists.
func Default() *Table {
	return NewTable(parseList(defaultLegendary), parseList(defaultMythical))
}

// Load reads both lists from a file path or http(s) URL. An empty source
// uses the embedded list for that tier.
func Load(ctx context.Context, legendarySrc, mythicalSrc string) (*Table, error) {
	legendary, err := readSource(ctx, legendarySrc, defaultLegendary)
	if err != nil {
		return nil, fmt.Errorf("rarity: legendary list: %w", err)
	}
	mythical, err := readSource(ctx, mythicalSrc, defaultMythical)
	if err != nil {
		return nil, fmt.Errorf("rarity: mythical list: %w", err)
	}

	log.Printf("rarity: loaded %d legendary (digest %016x), %d mythical (digest %016x)",
		len(legendary), xxhash.Checksum64([]byte(strings.Join(legendary, "\n"))),
		len(mythical), xxhash.Checksum64([]byte(strings.Join(mythical, "\n"))))

	return NewTable(legendary, mythical), nil
}

// Classify is total: unknown names are Normal. A name on both lists counts as legendary.
func (t *Table) Classify(name string) Tier {
	if t == nil {
		return Normal
	}
	if _, ok := t.legendary[name]; ok {
		return Legendary
	}
	if _, ok := t.mythical[name]; ok {
		return Mythical
	}
	return Normal
}

func (t *Table) Len() (legendary, mythical int) {
	return len(t.legendary), len(t.mythical)
}

func readSource(ctx context.Context, src string, fallback []byte) ([]string, error) {
	src = strings.TrimSpace(src)
	switch {
	case src == "":
		return parseList(fallback), nil
	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		body, err := webclient.Get(ctx, nil, src)
		if err != nil {
			return nil, err
		}
		return parseList(body), nil
	default:
		body, err := os.ReadFile(src)
		if err != nil {
			return nil, err
		}
		return parseList(body), nil
	}
}

func parseList(raw []byte) []string {
	var names []string
	sc := bufio.NewScanner(bytes.NewReader(raw))
	for sc.Scan() {
		if name := strings.TrimSpace(sc.Text()); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}
