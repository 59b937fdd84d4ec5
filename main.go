package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
	metricsserver "sigs.k8s.io/controller-runtime/pkg/metrics/server"
	"sigs.k8s.io/yaml"

	"github.com/bayleafwalker/artifact-resolver/internal/artifact"
	"github.com/bayleafwalker/artifact-resolver/internal/cache"
	"github.com/bayleafwalker/artifact-resolver/internal/repository"
	"github.com/bayleafwalker/artifact-resolver/internal/resolver"
	"github.com/bayleafwalker/artifact-resolver/internal/snapshot"
	"github.com/bayleafwalker/artifact-resolver/internal/version"
)

var (
	scheme   = runtime.NewScheme()
	setupLog = ctrl.Log.WithName("setup")
)

func init() {
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
}

func main() {
	var namespace string
	var concurrency int
	var cacheCapacity int
	var cachePolicy string
	var snapshotTTL time.Duration
	var oldestWins bool
	var skipOptional bool
	var exempt bool
	var timeout time.Duration
	var metricsAddr string
	var metricsLinger time.Duration

	flag.StringVar(&namespace, "namespace", "default", "Namespace holding the artifact ConfigMaps.")
	flag.IntVar(&concurrency, "concurrency", 1, "Maximum number of concurrent dependency lookups.")
	flag.IntVar(&cacheCapacity, "cache-capacity", cache.DefaultCapacity, "Capacity of the metadata and snapshot caches.")
	flag.StringVar(&cachePolicy, "cache-policy", string(cache.PolicyLastInserted), "Cache eviction policy: last-inserted or lru.")
	flag.DurationVar(&snapshotTTL, "snapshot-ttl", snapshot.DefaultTTL, "How long snapshot build lists are trusted. Zero disables expiry.")
	flag.BoolVar(&oldestWins, "oldest-wins", false, "Keep the oldest version when siblings conflict.")
	flag.BoolVar(&skipOptional, "skip-optional", false, "Do not follow optional dependencies below the roots.")
	flag.BoolVar(&exempt, "exempt", false, "Skip checksum verification of stored metadata.")
	flag.DurationVar(&timeout, "timeout", 2*time.Minute, "Overall resolution timeout.")
	flag.StringVar(&metricsAddr, "metrics-bind-address", "0", "The address the metric endpoint binds to. \"0\" disables it.")
	flag.DurationVar(&metricsLinger, "metrics-linger", 0, "How long to keep serving metrics after resolution finishes.")

	opts := zap.Options{Development: true}
	opts.BindFlags(flag.CommandLine)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] group:name:version ...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	ctrl.SetLogger(zap.New(zap.UseFlagOptions(&opts)))

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(1)
	}
	roots := make([]artifact.Coordinates, 0, flag.NArg())
	for _, arg := range flag.Args() {
		c, err := artifact.ParseCoordinates(arg)
		if err != nil {
			setupLog.Error(err, "invalid root coordinates")
			os.Exit(1)
		}
		roots = append(roots, c)
	}

	cfg, err := ctrl.GetConfig()
	if err != nil {
		setupLog.Error(err, "unable to load kubeconfig")
		os.Exit(1)
	}
	k8sClient, err := client.New(cfg, client.Options{Scheme: scheme})
	if err != nil {
		setupLog.Error(err, "unable to create client")
		os.Exit(1)
	}

	policy := cache.WithPolicy(cache.Policy(cachePolicy))
	metaCache, err := cache.New[string, []byte](cacheCapacity, cache.WithName("metadata"), policy)
	if err != nil {
		setupLog.Error(err, "unable to create metadata cache")
		os.Exit(1)
	}
	snapCache, err := cache.New[artifact.GA, *snapshot.GAVMetadata](cacheCapacity, cache.WithName("snapshots"), policy)
	if err != nil {
		setupLog.Error(err, "unable to create snapshot cache")
		os.Exit(1)
	}

	cmReader, err := repository.NewConfigMapReader(k8sClient, namespace)
	if err != nil {
		setupLog.Error(err, "unable to create reader")
		os.Exit(1)
	}
	reader, err := repository.NewCachingReader(cmReader, metaCache)
	if err != nil {
		setupLog.Error(err, "unable to create reader")
		os.Exit(1)
	}
	processor, err := repository.NewReaderProcessor(reader, exempt)
	if err != nil {
		setupLog.Error(err, "unable to create dependency processor")
		os.Exit(1)
	}
	// Snapshot listings go to the uncached reader; the store applies its TTL.
	source, err := repository.NewReaderSource(cmReader, exempt)
	if err != nil {
		setupLog.Error(err, "unable to create snapshot source")
		os.Exit(1)
	}
	store, err := snapshot.NewStore(source, snapCache, snapshot.Options{TTL: snapshotTTL})
	if err != nil {
		setupLog.Error(err, "unable to create snapshot store")
		os.Exit(1)
	}

	comparator := version.NewestWins()
	if oldestWins {
		comparator = version.OldestWins()
	}
	r, err := resolver.NewDefault(processor,
		resolver.WithComparator(comparator),
		resolver.WithConcurrency(concurrency),
		resolver.WithSnapshotStore(store),
		resolver.WithSkipOptional(skipOptional),
	)
	if err != nil {
		setupLog.Error(err, "unable to create resolver")
		os.Exit(1)
	}

	signalCtx := ctrl.SetupSignalHandler()
	metricsCtx, stopMetrics := context.WithCancel(signalCtx)
	defer stopMetrics()
	if metricsAddr != "0" {
		httpClient, err := rest.HTTPClientFor(cfg)
		if err != nil {
			setupLog.Error(err, "unable to create metrics http client")
			os.Exit(1)
		}
		srv, err := metricsserver.NewServer(metricsserver.Options{BindAddress: metricsAddr}, cfg, httpClient)
		if err != nil {
			setupLog.Error(err, "unable to create metrics server")
			os.Exit(1)
		}
		go func() {
			if err := srv.Start(metricsCtx); err != nil {
				setupLog.Error(err, "metrics server stopped")
			}
		}()
	}

	os.Exit(resolve(signalCtx, r, roots, timeout, func() {
		if metricsAddr == "0" || metricsLinger <= 0 {
			return
		}
		setupLog.Info("serving metrics", "address", metricsAddr, "for", metricsLinger)
		select {
		case <-time.After(metricsLinger):
		case <-signalCtx.Done():
		}
	}))
}

// resolve runs one resolution, prints the tree and returns the exit code.
// linger runs after the output is written.
func resolve(parent context.Context, r resolver.Resolver, roots []artifact.Coordinates, timeout time.Duration, linger func()) int {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()
	ctx = log.IntoContext(ctx, ctrl.Log.WithName("resolver"))

	tree, resolveErr := r.Resolve(ctx, roots)
	out, err := yaml.Marshal(tree.View())
	if err != nil {
		setupLog.Error(err, "unable to render tree")
		return 1
	}
	os.Stdout.Write(out)
	defer linger()

	if resolveErr != nil {
		setupLog.Error(resolveErr, "resolution did not complete")
		return 1
	}
	failed := tree.Errors()
	for _, n := range failed {
		setupLog.Error(n.Err, "node failed", "artifact", n.Metadata.Coordinates.String())
	}
	if len(failed) > 0 {
		return 2
	}
	return 0
}
