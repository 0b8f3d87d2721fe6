package internal

import (
	"context"
	"fmt"
	"sync"

	"github.com/rovercam/rovercam/internal/api"
	"github.com/rovercam/rovercam/internal/api/controls"
	"github.com/rovercam/rovercam/internal/api/videos"
	"github.com/rovercam/rovercam/internal/blob"
	"github.com/rovercam/rovercam/internal/control"
	"github.com/rovercam/rovercam/internal/database"
	"github.com/rovercam/rovercam/internal/media"
	"github.com/rovercam/rovercam/internal/stream"
	"github.com/rovercam/rovercam/internal/sweep"
	"github.com/rovercam/rovercam/pkg/logger"
)

var log = logger.Get("Core")

type (
	RunnableService interface {
		Run(context.Context) error
	}

	// roverCamImpl is the top-level object for the server, responsible for
	// constructing the stores, services and gateway, and running them until
	// the provided context is cancelled.
	roverCamImpl struct {
		config RoverCamConfig
		db     database.Manager

		mediaStore *media.Store
		blobStore  *blob.Store

		restGateway  RunnableService
		sweepService RunnableService
	}

	// videoDataStore binds the media store to the database connection,
	// presenting the catalog surface the controllers and sweeper consume.
	videoDataStore struct {
		db     database.Manager
		videos *media.Store
	}
)

func New(config RoverCamConfig) *roverCamImpl {
	rovercam := &roverCamImpl{
		config:     config,
		db:         database.New(),
		mediaStore: media.NewStore(),
	}

	blobStore, err := blob.NewStore(config.Storage.BlobDirPath)
	if err != nil {
		panic(fmt.Sprintf("failed to construct blob store: %s", err.Error()))
	}
	rovercam.blobStore = blobStore

	publisher, err := control.NewPublisher(config.Mqtt)
	if err != nil {
		panic(fmt.Sprintf("failed to construct rover control publisher: %s", err.Error()))
	}

	dataStore := &videoDataStore{db: rovercam.db, videos: rovercam.mediaStore}
	rovercam.restGateway = api.NewRestGateway(
		&config.Rest,
		videos.New(dataStore, blobStore, stream.New(blobStore)),
		controls.New(publisher),
	)
	rovercam.sweepService = sweep.New(config.Sweep, blobStore, dataStore)

	return rovercam
}

// Run connects to the database, runs pending migrations, and brings up the
// REST gateway and the orphan sweeper. It will not return until the
// provided context is cancelled or a service crashes.
func (rovercam *roverCamImpl) Run(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	crashHandler := func(label string, err error) {
		log.Emit(logger.FATAL, "Service crash (%s)! %s\n", label, err.Error())
		cancel()
	}

	log.Emit(logger.NEW, "Connecting to database...\n")
	if err := rovercam.db.Connect(rovercam.config.Database); err != nil {
		return err
	}

	wg := &sync.WaitGroup{}
	rovercam.spawnAsyncService(ctx, wg, rovercam.restGateway, "rest-gateway", crashHandler)
	rovercam.spawnAsyncService(ctx, wg, rovercam.sweepService, "sweep-service", crashHandler)
	log.Emit(logger.SUCCESS, "RoverCam services spawned!\n")

	wg.Wait()
	return nil
}

// spawnAsyncService will run the provided service as its own go-routine,
// ensuring that the service waitgroup is updated correctly
func (rovercam *roverCamImpl) spawnAsyncService(context context.Context, wg *sync.WaitGroup, service RunnableService, serviceLabel string, crashHandler func(string, error)) {
	log.Emit(logger.NEW, "Spawning %s\n", serviceLabel)
	wg.Add(1)

	go func(wg *sync.WaitGroup, label string, crash func(string, error)) {
		defer func() {
			if r := recover(); r != nil {
				crash(label, fmt.Errorf("panic %v", r))
			}
		}()

		defer wg.Done()
		if err := service.Run(context); err != nil {
			crash(label, err)
		}
	}(wg, serviceLabel, crashHandler)
}

func (store *videoDataStore) CreateVideo(slug string, origName string, mime string, sizeBytes int64) (*media.Video, error) {
	return store.videos.Create(store.db.GetSqlxDb(), slug, origName, mime, sizeBytes)
}

func (store *videoDataStore) GetVideo(slug string) (*media.Video, error) {
	return store.videos.Get(store.db.GetSqlxDb(), slug)
}

func (store *videoDataStore) ListVideos() ([]*media.Video, error) {
	return store.videos.ListAll(store.db.GetSqlxDb())
}

func (store *videoDataStore) SetVideoTitle(slug string, title string) (*media.Video, error) {
	return store.videos.SetTitle(store.db.GetSqlxDb(), slug, title)
}

func (store *videoDataStore) DeleteVideo(slug string) error {
	return store.videos.Delete(store.db.GetSqlxDb(), slug)
}

func (store *videoDataStore) KnownSlugs() (map[string]struct{}, error) {
	return store.videos.KnownSlugs(store.db.GetSqlxDb())
}
