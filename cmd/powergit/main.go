package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/polydawn/refmt"
	"github.com/polydawn/refmt/json"
	. "github.com/warpfork/go-errcat"
	"gopkg.in/alecthomas/kingpin.v2"
	"gopkg.in/src-d/go-billy.v4/osfs"
	"gopkg.in/src-d/go-git.v4/storage/memory"

	"github.com/powersync-community/powergit/api"
	"github.com/powersync-community/powergit/cache"
	"github.com/powersync-community/powergit/config"
	"github.com/powersync-community/powergit/gitgraph"
	"github.com/powersync-community/powergit/packstore"
)

/*
	Output serialization formats
*/
const (
	FmtJson = "json"
	FmtDumb = "dumb"
)

type baseCLI struct {
	Base      string // State root holding per-repo object directories
	Repo      string // Repository directory name under the state root
	Format    string // Output api format, eg. json
	IngestCLI struct {
		PackFiles []string // Pack files to ingest
		Progress  bool     // Emit progress notifications to stderr
	}
	LsCLI struct {
		Commit string // Commit oid to list under
		Path   string // Path within the commit's tree (empty for root)
	}
	CatCLI struct {
		Commit string // Commit oid to read under
		Path   string // Path of the blob to print
	}
}

/*
	Blocks until a sigint is received, then calls cancel.
*/
func CancelOnInterrupt(cancel context.CancelFunc) {
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt)
	<-signalChan
	cancel()
	close(signalChan)
}

func main() {
	ctx := context.Background()
	exitCode := Main(ctx, os.Args, os.Stdin, os.Stdout, os.Stderr)
	os.Exit(int(exitCode))
}

func Main(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) api.ExitCode {
	ctx, cancel := context.WithCancel(ctx)
	go CancelOnInterrupt(cancel)

	cli := baseCLI{}

	app := kingpin.New("powergit", "Browser-style git object store, on your filesystem")
	app.HelpFlag.Short('h')

	app.UsageWriter(stderr)
	app.ErrorWriter(stderr)

	app.Flag("base", "State root for repository object directories").
		Default(config.GetBasePath()).
		StringVar(&cli.Base)
	app.Flag("repo", "Repository directory name under the state root").
		Required().
		StringVar(&cli.Repo)
	app.Flag("format", "Output api format").
		Default(FmtDumb).
		EnumVar(&cli.Format, FmtJson, FmtDumb)

	appIngest := app.Command("ingest", "ingest pack files into the object store")
	appIngest.Arg("packfile", "Pack files to ingest").
		Required().
		StringsVar(&cli.IngestCLI.PackFiles)
	appIngest.Flag("progress", "Emit progress notifications").
		BoolVar(&cli.IngestCLI.Progress)

	appLs := app.Command("ls", "list a tree at a path under a commit")
	appLs.Arg("commit", "Commit oid").
		Required().
		StringVar(&cli.LsCLI.Commit)
	appLs.Arg("path", "Path within the commit's tree").
		StringVar(&cli.LsCLI.Path)

	appCat := app.Command("cat", "print one blob's content")
	appCat.Arg("commit", "Commit oid").
		Required().
		StringVar(&cli.CatCLI.Commit)
	appCat.Arg("path", "Path of the blob").
		Required().
		StringVar(&cli.CatCLI.Path)

	var termErr error
	app.Terminate(func(status int) {
		termErr = fmt.Errorf("parsing error: %d\n", status)
	})
	cmd, err := app.Parse(args[1:])
	if err != nil {
		fmt.Fprintln(stderr, err)
		return api.ExitUsage
	}
	if termErr != nil {
		fmt.Fprintln(stderr, termErr)
		return api.ExitUsage
	}

	world, err := openRepo(cli)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitFor(err)
	}

	switch cmd {
	case appIngest.FullCommand():
		err = executeIngest(ctx, cli, world, stderr)
		if err == nil && cli.Format == FmtJson {
			serialize(cli.Format, world.store.Progress(), stdout)
		}
	case appLs.FullCommand():
		err = executeLs(cli, world, stdout)
	case appCat.FullCommand():
		err = executeCat(cli, world, stdout)
	}
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitFor(err)
	}
	return api.ExitSuccess
}

/*
	Everything one repository needs, wired together: one filesystem, one
	byte cache shared between the writer and the indexer's read path,
	one store, one reader.
*/
type repoWorld struct {
	store  *packstore.Store
	reader *gitgraph.Reader
}

func openRepo(cli baseCLI) (*repoWorld, error) {
	afs := osfs.New(filepath.Join(cli.Base, cli.Repo))
	objects := memory.NewStorage()
	byteCache := cache.NewByteCache()
	indexer := gitgraph.NewIndexer(objects, cache.ReadThrough{
		Cache: byteCache,
		Next:  cache.BillyReadFS{FS: afs},
	})
	store, err := packstore.New(packstore.Options{
		FS:      afs,
		KV:      packstore.FileKV{FS: afs, Base: ".powergit"},
		Indexer: indexer,
		Cache:   byteCache,
	})
	if err != nil {
		return nil, err
	}
	// Warm the in-memory object storer from packs already on disk, so
	// reads work without re-ingesting anything.
	if err := indexer.LoadExisting(afs, ".git/objects/pack"); err != nil {
		return nil, err
	}
	return &repoWorld{store: store, reader: gitgraph.NewReader(objects)}, nil
}

func executeIngest(ctx context.Context, cli baseCLI, world *repoWorld, stderr io.Writer) error {
	var packs []api.PackDescriptor
	for _, file := range cli.IngestCLI.PackFiles {
		raw, err := ioutil.ReadFile(file)
		if err != nil {
			return Errorf(api.ErrUsage, "cannot read pack file: %s", err)
		}
		info, err := os.Stat(file)
		if err != nil {
			return Errorf(api.ErrUsage, "cannot stat pack file: %s", err)
		}
		packs = append(packs, api.PackDescriptor{
			RepoID:    cli.Repo,
			PackOid:   packOidForFile(file),
			Payload:   base64.StdEncoding.EncodeToString(raw),
			CreatedAt: info.ModTime().UnixNano() / 1e6,
		})
	}
	var unsubscribe func()
	if cli.IngestCLI.Progress {
		unsubscribe = world.store.Subscribe(func(p api.IndexProgress) {
			fmt.Fprintf(stderr, "%s: %d/%d\n", p.Status, p.Processed, p.Total)
		})
		defer unsubscribe()
	}
	return world.store.Submit(ctx, packs)
}

func executeLs(cli baseCLI, world *repoWorld, stdout io.Writer) error {
	var segments []string
	trimmed := strings.Trim(cli.LsCLI.Path, "/")
	if trimmed != "" {
		segments = strings.Split(trimmed, "/")
	}
	entries, err := world.reader.ListTreeAtPath(cli.LsCLI.Commit, segments)
	if err != nil {
		return err
	}
	switch cli.Format {
	case FmtJson:
		serialize(cli.Format, entries, stdout)
	case FmtDumb:
		for _, e := range entries {
			fmt.Fprintf(stdout, "%s %s %s\t%s\n", e.Mode, e.Type, e.Oid, e.Path)
		}
	}
	return nil
}

func executeCat(cli baseCLI, world *repoWorld, stdout io.Writer) error {
	content, err := world.reader.ReadFile(cli.CatCLI.Commit, cli.CatCLI.Path)
	if err != nil {
		return err
	}
	switch cli.Format {
	case FmtJson:
		serialize(cli.Format, content, stdout)
	case FmtDumb:
		stdout.Write(content.Content)
	}
	return nil
}

func serialize(format string, value interface{}, stdout io.Writer) {
	switch format {
	case FmtJson:
		marshaller := refmt.NewMarshallerAtlased(json.EncodeOptions{}, stdout, api.Atlas)
		if err := marshaller.Marshal(value); err != nil {
			panic(err)
		}
	default:
		panic(fmt.Errorf("powergit: invalid format %s", format))
	}
}

// packOidForFile derives a stable pack oid from a file name:
// "pack-<oid>.pack" keeps its oid, anything else uses its base name.
func packOidForFile(file string) string {
	name := filepath.Base(file)
	name = strings.TrimSuffix(name, ".pack")
	return strings.TrimPrefix(name, "pack-")
}

func exitFor(err error) api.ExitCode {
	switch Category(err) {
	case api.ErrUsage:
		return api.ExitUsage
	case api.ErrNotFound:
		return api.ExitNotFound
	case api.ErrNotADirectory:
		return api.ExitNotADirectory
	case api.ErrIsADirectory:
		return api.ExitIsADirectory
	case api.ErrDecode:
		return api.ExitDecodeFailed
	case api.ErrIO:
		return api.ExitIOFailed
	case api.ErrIndex:
		return api.ExitIndexFailed
	case api.ErrCancelled:
		return api.ExitCancelled
	default:
		return api.ExitCode(254)
	}
}
