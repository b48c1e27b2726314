package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/opencontainers/go-digest"
	"github.com/pkg/errors"

	"github.com/jingkaihe/pluginreg/pkg/presenter"
)

// osExit is replaced in tests.
var osExit = os.Exit

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return errors.Wrap(err, "failed to encode output")
	}
	return nil
}

// shortDigest abbreviates a digest for tables.
func shortDigest(d digest.Digest) string {
	if d == "" {
		return "-"
	}
	enc := d.Encoded()
	if len(enc) > 12 {
		enc = enc[:12]
	}
	return string(d.Algorithm()) + ":" + enc
}

func joinOrDash(values []string) string {
	if len(values) == 0 {
		return "-"
	}
	return strings.Join(values, ", ")
}

// exitOnError reports err and exits. Errors are printed even in quiet mode.
// Pending spans are flushed first since os.Exit skips PersistentPostRun.
func exitOnError(err error, message string) {
	if err == nil {
		return
	}
	presenter.Error(err, message)
	flushTracing(context.Background())
	osExit(1)
}
