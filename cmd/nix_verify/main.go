package main

import (
	"context"
	"os"
	"time"

	"github.com/alecthomas/kong"
	log "github.com/sirupsen/logrus"

	"github.com/flokli/nix-verify/pkg/catalog"
	"github.com/flokli/nix-verify/pkg/state"
	"github.com/flokli/nix-verify/pkg/store"
	"github.com/flokli/nix-verify/pkg/verify"
)

var CLI struct {
	Verify struct {
		StateFile string        `name:"state-file" help:"Path to the state.json descriptor written by the deployment launcher." type:"path" default:"var/ncps/state.json"`
		Hash      string        `name:"hash" help:"Verify only the narinfo with this hash." optional:""`
		Limit     int           `name:"limit" help:"Verify at most N narinfos."`
		Jobs      int           `name:"jobs" help:"Number of narinfos to verify concurrently." default:"1"`
		Timeout   time.Duration `name:"timeout" help:"Hard timeout for individual storage and catalog calls." default:"30s"`
	} `cmd:"" verify:"Verify catalog entries against the bytes held in storage."`
}

func main() {
	ctx := kong.Parse(&CLI)
	switch ctx.Command() {
	case "verify":
		os.Exit(run())
	default:
		panic(ctx.Command())
	}
}

func run() int {
	st, err := state.Load(CLI.Verify.StateFile)
	if err != nil {
		log.Error(err)

		return 1
	}

	cat, err := catalog.Open(st.DB, st.DBURL)
	if err != nil {
		log.Error(err)

		return 1
	}
	defer cat.Close()

	str, err := openStore(st)
	if err != nil {
		log.Error(err)

		return 1
	}

	log.WithFields(log.Fields{
		"db":      st.DB,
		"storage": st.Storage,
		"cdc":     st.CDC,
	}).Info("starting verification")

	v := &verify.Verifier{
		Catalog: cat,
		Store:   str,
		CDC:     st.CDC,
		Timeout: CLI.Verify.Timeout,
		Jobs:    CLI.Verify.Jobs,
		Out:     os.Stdout,
	}

	summary, err := v.Run(context.Background(), CLI.Verify.Hash, CLI.Verify.Limit)
	if err != nil {
		log.Error(err)

		return 1
	}

	if summary.Failed() {
		return 1
	}

	return 0
}

func openStore(st *state.State) (store.Store, error) {
	if st.Storage == state.StorageS3 {
		return store.NewS3Store(store.S3Config{
			Endpoint:  st.S3.Endpoint,
			Bucket:    st.S3.Bucket,
			Region:    st.S3.Region,
			AccessKey: st.S3.AccessKey,
			SecretKey: st.S3.SecretKey,
		})
	}

	// state.Load already rejected unknown storage kinds
	return store.NewLocalStore(st.StoragePath)
}
