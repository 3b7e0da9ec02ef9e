// iscsi-pdudump decodes a capture of iSCSI PDUs and prints their header
// fields and text parameters.
//
// Usage:
//
//	iscsi-pdudump [options] [file]
//
// Options:
//
//	-hex            Input is hex text (whitespace is ignored)
//	-header-digest  Header digest in use: None or CRC32C (default: None)
//	-data-digest    Data digest in use: None or CRC32C (default: None)
//	-v              Log decoding diagnostics
//
// The capture is read from file, or from stdin when no file is given.
//
// Example:
//
//	iscsi-pdudump -hex -header-digest CRC32C login.hex
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/backkem/iscsi/pkg/digest"
	"github.com/pion/logging"
)

func main() {
	hexInput := flag.Bool("hex", false, "Input is hex text (whitespace is ignored)")
	headerDigest := flag.String("header-digest", digest.NameNone, "Header digest in use: None or CRC32C")
	dataDigest := flag.String("data-digest", digest.NameNone, "Data digest in use: None or CRC32C")
	verbose := flag.Bool("v", false, "Log decoding diagnostics")
	flag.Parse()

	factory := logging.NewDefaultLoggerFactory()
	factory.DefaultLogLevel = logging.LogLevelWarn
	if *verbose {
		factory.DefaultLogLevel = logging.LogLevelDebug
	}
	log := factory.NewLogger("pdudump")

	opts, err := newOptions(*hexInput, *headerDigest, *dataDigest)
	if err != nil {
		log.Errorf("%v", err)
		os.Exit(2)
	}

	in := io.Reader(os.Stdin)
	if flag.NArg() > 0 {
		f, err := os.Open(flag.Arg(0))
		if err != nil {
			log.Errorf("%v", err)
			os.Exit(1)
		}
		defer f.Close()
		in = f
	}

	n, err := dump(os.Stdout, in, opts, log)
	log.Debugf("decoded %d PDUs", n)
	if err != nil {
		fmt.Fprintf(os.Stderr, "iscsi-pdudump: %v\n", err)
		os.Exit(1)
	}
}
