package service_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/okian/gotsim/internal/config"
)

var rawFactions = []string{"Baratheon", "Lannister", "Stark", "Targaryen", "Night's Watch", "Wildling"}

// writeRaw writes a character-deaths table with 60 major-faction rows and
// two Martell rows. Row i dies in book 1 (i%3 == 0), in book 3 (i%3 == 1)
// or never, which spreads the rows over all three survival buckets.
func writeRaw(t *testing.T, path string) {
	t.Helper()
	var b strings.Builder
	b.WriteString("Name,Allegiances,Death Year,Book of Death,Death Chapter,Book Intro Chapter,Gender,Nobility,GoT,CoK,SoS,FfC,DwD\n")
	for i := 0; i < 60; i++ {
		var death, book, chapter, flags string
		switch i % 3 {
		case 0:
			death, book, chapter, flags = "298", "1", "50", "1,0,0,0,0"
		case 1:
			death, book, chapter, flags = "299", "3", "10", "1,1,1,0,0"
		default:
			flags = "1,1,1,1,1"
		}
		fmt.Fprintf(&b, "%s,%s,%s,%s,%s,0,%d,%d,%s\n",
			name(i), rawFactions[i%len(rawFactions)], death, book, chapter, i%2, (i/2)%2, flags)
	}
	b.WriteString("Doran Martell,House Martell,,,,3,1,1,0,0,0,1,1\n")
	b.WriteString("Oberyn Martell,Martell,300,3,70,38,1,1,0,0,1,0,0\n")
	write(t, path, b.String())
}

// writeProfile writes profile attributes for the first 30 characters.
func writeProfile(t *testing.T, path string) {
	t.Helper()
	var b strings.Builder
	b.WriteString("S.No,name,isMarried,boolDeadRelations,isPopular\n")
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&b, "%d,%s,%d,%d,%d\n", i+1, name(i), i%2, (i/3)%2, (i/5)%2)
	}
	write(t, path, b.String())
}

func name(i int) string { return fmt.Sprintf("Character %02d", i) }

func write(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

// testConfig returns the default configuration rooted at a temp directory
// with a small forest.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.New(context.Background())
	cfg.DataDir = t.TempDir()
	cfg.Model.Forest.NEstimators = 10
	cfg.Database.DSN = "file:" + filepath.Join(cfg.DataDir, "got_prediction.db")
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	return cfg
}
