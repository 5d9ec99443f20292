package cli

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mcustage/fwstage/internal/devflag"
	"github.com/mcustage/fwstage/internal/httpfetch"
	"github.com/mcustage/fwstage/internal/progress"
	"github.com/mcustage/fwstage/stage"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// stageCmd is fwstage stage.
var stageCmd = &cobra.Command{
	GroupID: "upgrade",
	Use:     "stage",
	Short:   "Stream a firmware image into the secondary slot and verify it",
	Long: `Stream a firmware image into the secondary slot and verify it.

The image comes from a local file (--from) or a download URI (--url). The
expected digest is taken from the update manifest via --hash; for local
files it is computed on the fly when omitted.
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().NArg() > 0 {
			fmt.Fprint(os.Stderr, `positional arguments are not supported

`)
			return cmd.Usage()
		}
		return stageImpl.run(cmd.Context())
	},
}

type stageImplConfig struct {
	from string
	url  string
	algo string
	hash string
	size int64
}

var stageImpl stageImplConfig

func init() {
	devflag.RegisterPflags(stageCmd.Flags())
	stageCmd.Flags().StringVar(&stageImpl.from, "from", "", "path of the firmware image file to stage")
	stageCmd.Flags().StringVar(&stageImpl.url, "url", "", "download URI of the firmware image to stage")
	stageCmd.Flags().StringVar(&stageImpl.algo, "algo", "sha256", "digest algorithm of --hash (sha256, sha384, sha512)")
	stageCmd.Flags().StringVar(&stageImpl.hash, "hash", "", "expected image digest, base64-encoded")
	stageCmd.Flags().Int64Var(&stageImpl.size, "size", 0, "expected image size in bytes (defaults to the source size)")
}

func (r *stageImplConfig) run(ctx context.Context) error {
	if (r.from == "") == (r.url == "") {
		return fmt.Errorf("exactly one of --from and --url is required")
	}

	env, err := newEnv()
	if err != nil {
		return err
	}
	defer env.close()

	var (
		src   io.ReadCloser
		total = r.size
		hs    = stage.HashSpec{Algorithm: r.algo, Digest: r.hash}
	)
	if r.from != "" {
		f, err := os.Open(r.from)
		if err != nil {
			return err
		}
		src = f
		if total == 0 {
			st, err := f.Stat()
			if err != nil {
				return err
			}
			total = st.Size()
		}
		if hs.Digest == "" {
			digest, err := fileDigest(r.from)
			if err != nil {
				return err
			}
			hs = stage.HashSpec{Algorithm: "sha256", Digest: digest}
		}
	} else {
		if hs.Digest == "" {
			return fmt.Errorf("--hash is required with --url")
		}
		body, length, err := httpfetch.Fetch(ctx, r.url)
		if err != nil {
			return err
		}
		src = body
		if total == 0 {
			if length < 0 {
				return fmt.Errorf("server did not report a content length, use --size")
			}
			total = length
		}
	}
	defer src.Close()

	fmt.Printf("Staging %d bytes into %s\n", total, env.cfg.SecondaryPath)

	start := time.Now()
	prog := &progress.Reporter{}
	prog.SetStatus("staging")
	prog.SetTotal(uint64(total))

	progctx, canc := context.WithCancel(ctx)
	var eg errgroup.Group
	eg.Go(func() error {
		prog.Report(progctx)
		return nil
	})
	eg.Go(func() error {
		defer canc()
		return env.engine.StageStream(ctx, total, hs, io.TeeReader(src, prog))
	})
	if err := eg.Wait(); err != nil {
		return err
	}

	duration := time.Since(start)
	fmt.Printf("\rStaged and verified %s in %v (%.2f MiB/s)\n",
		progress.Bytes(prog.Transferred()),
		duration.Round(time.Second),
		float64(prog.Transferred())/duration.Seconds()/1024/1024)
	return nil
}

func fileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(h.Sum(nil)), nil
}
