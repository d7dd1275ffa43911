// Command scanx reads and writes barcodes with the scanx engine.
//
//	scanx read photo.png --format QRCode --output json
//	scanx read -i shelf.jpg
//	scanx write "HELLO" --format QRCode --out hello.png
//	scanx info
package main

import (
	"os"
)

func main() {
	if err := execute(newApp(), os.Args[1:]); err != nil {
		os.Exit(1)
	}
}
