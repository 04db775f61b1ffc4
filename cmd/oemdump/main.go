// Command oemdump prints a summary of an OEM ephemeris file and the sample
// nearest to a given instant.
//
//	oemdump -file ISS.OEM_J2K_EPH.xml
//	oemdump -cache-dir /tmp/isstrack/oem -at 2024-04-09T12:05:00Z
package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/soniakeys/meeus/v3/julian"

	"github.com/star/isstrack/internal/ephemeris"
	"github.com/star/isstrack/internal/oem"
	"github.com/star/isstrack/internal/transform"
)

func main() {
	file := flag.String("file", "", "OEM XML file to read")
	cacheDir := flag.String("cache-dir", "/tmp/isstrack/oem", "feed cache to read when -file is not set")
	at := flag.String("at", "", "reference instant (RFC 3339, default now)")
	flag.Parse()

	data, origin, err := load(*file, *cacheDir)
	if err != nil {
		fmt.Println("ERROR loading feed:", err)
		os.Exit(1)
	}

	ds, err := oem.Parse(bytes.NewReader(data))
	if err != nil {
		fmt.Println("ERROR parsing feed:", err)
		os.Exit(1)
	}

	ref := time.Now().UTC()
	if *at != "" {
		ref, err = time.Parse(time.RFC3339, *at)
		if err != nil {
			fmt.Println("ERROR parsing -at:", err)
			os.Exit(1)
		}
	}

	fmt.Printf("Source: %s (%d bytes)\n", origin, len(data))
	if name, ok := ds.Metadata.Get("OBJECT_NAME"); ok {
		fmt.Printf("Object: %s\n", name)
	}
	if frame, ok := ds.Metadata.Get("REF_FRAME"); ok {
		fmt.Printf("Frame:  %s\n", frame)
	}
	fmt.Printf("Comments: %d\n", len(ds.Comments))
	fmt.Printf("State vectors: %d\n", len(ds.StateVectors))
	if n := len(ds.StateVectors); n > 0 {
		fmt.Printf("Span: %s .. %s\n", ds.StateVectors[0].Epoch, ds.StateVectors[n-1].Epoch)
	}

	sv, delta, err := ephemeris.Nearest(ds, ref)
	if err != nil {
		fmt.Println("ERROR:", err)
		os.Exit(1)
	}
	g, err := transform.FromStateVector(sv)
	if err != nil {
		fmt.Println("ERROR:", err)
		os.Exit(1)
	}
	t, _ := oem.ParseEpoch(sv.Epoch)

	fmt.Printf("\nNearest to %s: %s (%.0fs away, JD %.5f)\n",
		ref.Format(time.RFC3339), sv.Epoch, delta, julian.TimeToJD(t))
	fmt.Printf("  lat=%.4f° lon=%.4f° alt=%.3f km speed=%.3f km/s\n",
		g.Latitude, g.Longitude, g.Altitude, transform.Speed(sv.Velocity))
}

func load(file, cacheDir string) ([]byte, string, error) {
	if file != "" {
		data, err := os.ReadFile(file)
		return data, file, err
	}
	data, ts, err := oem.NewCache(cacheDir, 1).LoadLatest()
	if err != nil {
		return nil, "", err
	}
	return data, fmt.Sprintf("cache %s @ %s", cacheDir, ts.UTC().Format(time.RFC3339)), nil
}
