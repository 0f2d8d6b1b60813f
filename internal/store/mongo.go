package store

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/quanmbl4255142/devportal-sync/internal/models"
)

// Collection names used by the Mongo-backed store.
const (
	collResources     = "cluster_resources"
	collApplications  = "argocd_applications"
	collServices      = "service_metadata"
	collServiceHealth = "service_health"
	collSyncJobs      = "sync_jobs"
	collClusterInfo   = "cluster_info"
)

// MongoStore implements Store on top of a MongoDB database.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
	logger *zap.Logger
}

// Ensure MongoStore satisfies the Store interface at compile time.
var _ Store = (*MongoStore)(nil)

// NewMongoStore connects to MongoDB, verifies the connection, and ensures
// the indexes the sync path relies on.
func NewMongoStore(ctx context.Context, uri, database string, connectTimeout time.Duration, logger *zap.Logger) (*MongoStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}

	s := &MongoStore{
		client: client,
		db:     client.Database(database),
		logger: logger,
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ensuring indexes: %w", err)
	}

	logger.Info("connected to mongodb", zap.String("database", database))
	return s, nil
}

// ensureIndexes creates the identity and lookup indexes. Index creation is
// idempotent so this runs unconditionally on startup.
func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		collResources: {
			{Keys: bson.D{{Key: "uid", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "kind", Value: 1}, {Key: "namespace", Value: 1}}},
		},
		collApplications: {
			{Keys: bson.D{{Key: "uid", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "name", Value: 1}}},
		},
		collServices: {
			{Keys: bson.D{{Key: "service_name", Value: 1}, {Key: "namespace", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		collServiceHealth: {
			{Keys: bson.D{{Key: "service_name", Value: 1}, {Key: "namespace", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		collSyncJobs: {
			{Keys: bson.D{{Key: "job_id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "started_at", Value: -1}}},
		},
		collClusterInfo: {
			{Keys: bson.D{{Key: "cluster_type", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
	}

	for coll, idx := range indexes {
		if _, err := s.db.Collection(coll).Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("collection %s: %w", coll, err)
		}
	}
	return nil
}

// Close disconnects from MongoDB.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Ping verifies the MongoDB connection is still alive.
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// UpsertResource writes a cluster resource record keyed by its UID.
func (s *MongoStore) UpsertResource(ctx context.Context, res *models.ClusterResource) error {
	_, err := s.db.Collection(collResources).ReplaceOne(ctx,
		bson.M{"uid": res.UID}, res, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upserting resource %s/%s: %w", res.Namespace, res.Name, err)
	}
	return nil
}

// GetResourceByUID retrieves a resource by its cluster-assigned UID.
func (s *MongoStore) GetResourceByUID(ctx context.Context, uid string) (*models.ClusterResource, error) {
	var res models.ClusterResource
	err := s.db.Collection(collResources).FindOne(ctx, bson.M{"uid": uid}).Decode(&res)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting resource %s: %w", uid, err)
	}
	return &res, nil
}

// ListResources returns resources matching the filter plus the total match count.
func (s *MongoStore) ListResources(ctx context.Context, f ResourceFilter) ([]*models.ClusterResource, int64, error) {
	query := bson.M{}
	if f.Kind != "" {
		query["kind"] = f.Kind
	}
	if f.Namespace != "" {
		query["namespace"] = f.Namespace
	}

	coll := s.db.Collection(collResources)
	total, err := coll.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("counting resources: %w", err)
	}

	opts := options.Find().SetSort(bson.D{{Key: "namespace", Value: 1}, {Key: "name", Value: 1}})
	if f.Skip > 0 {
		opts.SetSkip(f.Skip)
	}
	if f.Limit > 0 {
		opts.SetLimit(f.Limit)
	}

	cursor, err := coll.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("listing resources: %w", err)
	}
	var out []*models.ClusterResource
	if err := cursor.All(ctx, &out); err != nil {
		return nil, 0, fmt.Errorf("decoding resources: %w", err)
	}
	return out, total, nil
}

// DeleteResourcesNotIn removes resources of one kind absent from the live set.
func (s *MongoStore) DeleteResourcesNotIn(ctx context.Context, kind string, liveUIDs []string) (int64, error) {
	if liveUIDs == nil {
		liveUIDs = []string{}
	}
	res, err := s.db.Collection(collResources).DeleteMany(ctx, bson.M{
		"kind": kind,
		"uid":  bson.M{"$nin": liveUIDs},
	})
	if err != nil {
		return 0, fmt.Errorf("pruning %s resources: %w", kind, err)
	}
	return res.DeletedCount, nil
}

// UpsertApplication writes an application record keyed by its UID.
func (s *MongoStore) UpsertApplication(ctx context.Context, app *models.Application) error {
	_, err := s.db.Collection(collApplications).ReplaceOne(ctx,
		bson.M{"uid": app.UID}, app, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upserting application %s: %w", app.Name, err)
	}
	return nil
}

// GetApplicationByName retrieves an application by its exact name.
func (s *MongoStore) GetApplicationByName(ctx context.Context, name string) (*models.Application, error) {
	var app models.Application
	err := s.db.Collection(collApplications).FindOne(ctx, bson.M{"name": name}).Decode(&app)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting application %s: %w", name, err)
	}
	return &app, nil
}

// FindApplicationForService returns the first application whose name contains
// the service name, case-insensitively.
func (s *MongoStore) FindApplicationForService(ctx context.Context, serviceName string) (*models.Application, error) {
	pattern := primitive.Regex{Pattern: regexp.QuoteMeta(serviceName), Options: "i"}
	var app models.Application
	err := s.db.Collection(collApplications).
		FindOne(ctx, bson.M{"name": pattern}, options.FindOne().SetSort(bson.D{{Key: "name", Value: 1}})).
		Decode(&app)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("matching application for service %s: %w", serviceName, err)
	}
	return &app, nil
}

// ListApplications returns applications matching the filter plus the total match count.
func (s *MongoStore) ListApplications(ctx context.Context, f AppFilter) ([]*models.Application, int64, error) {
	query := bson.M{}
	if f.Project != "" {
		query["project"] = f.Project
	}
	if f.Health != "" {
		query["health"] = f.Health
	}
	if f.Sync != "" {
		query["sync"] = f.Sync
	}

	coll := s.db.Collection(collApplications)
	total, err := coll.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("counting applications: %w", err)
	}

	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	if f.Skip > 0 {
		opts.SetSkip(f.Skip)
	}
	if f.Limit > 0 {
		opts.SetLimit(f.Limit)
	}

	cursor, err := coll.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("listing applications: %w", err)
	}
	var out []*models.Application
	if err := cursor.All(ctx, &out); err != nil {
		return nil, 0, fmt.Errorf("decoding applications: %w", err)
	}
	return out, total, nil
}

// DeleteApplicationsNotIn removes applications absent from the live set.
func (s *MongoStore) DeleteApplicationsNotIn(ctx context.Context, liveUIDs []string) (int64, error) {
	if liveUIDs == nil {
		liveUIDs = []string{}
	}
	res, err := s.db.Collection(collApplications).DeleteMany(ctx, bson.M{
		"uid": bson.M{"$nin": liveUIDs},
	})
	if err != nil {
		return 0, fmt.Errorf("pruning applications: %w", err)
	}
	return res.DeletedCount, nil
}

// GetService retrieves a service metadata record by its identity pair.
func (s *MongoStore) GetService(ctx context.Context, name, namespace string) (*models.ServiceMetadata, error) {
	var svc models.ServiceMetadata
	err := s.db.Collection(collServices).
		FindOne(ctx, bson.M{"service_name": name, "namespace": namespace}).
		Decode(&svc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting service %s/%s: %w", namespace, name, err)
	}
	return &svc, nil
}

// InsertService creates a new service metadata record. The unique index on
// (service_name, namespace) rejects duplicates.
func (s *MongoStore) InsertService(ctx context.Context, svc *models.ServiceMetadata) error {
	_, err := s.db.Collection(collServices).InsertOne(ctx, svc)
	if err != nil {
		return fmt.Errorf("inserting service %s/%s: %w", svc.Namespace, svc.ServiceName, err)
	}
	return nil
}

// UpdateServiceFromK8s refreshes the discovery-derived fields of an existing
// service record.
func (s *MongoStore) UpdateServiceFromK8s(ctx context.Context, name, namespace string, upd *models.ServiceK8sUpdate, syncedAt time.Time) error {
	set := bson.M{
		"docker_image":                 upd.DockerImage,
		"deploy_config.memory_request": upd.MemoryRequest,
		"deploy_config.memory_limit":   upd.MemoryLimit,
		"deploy_config.cpu_request":    upd.CPURequest,
		"deploy_config.cpu_limit":      upd.CPULimit,
		"deploy_config.replicas":       upd.Replicas,
		"labels":                       upd.Labels,
		"annotations":                  upd.Annotations,
		"last_k8s_sync":                syncedAt,
		"updated_at":                   syncedAt,
	}
	_, err := s.db.Collection(collServices).UpdateOne(ctx,
		bson.M{"service_name": name, "namespace": namespace},
		bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("refreshing service %s/%s: %w", namespace, name, err)
	}
	return nil
}

// UpdateServiceHealthStatus sets the denormalized health_status field.
func (s *MongoStore) UpdateServiceHealthStatus(ctx context.Context, name, namespace, status string) error {
	_, err := s.db.Collection(collServices).UpdateOne(ctx,
		bson.M{"service_name": name, "namespace": namespace},
		bson.M{"$set": bson.M{"health_status": status, "updated_at": time.Now().UTC()}})
	if err != nil {
		return fmt.Errorf("updating health status for %s/%s: %w", namespace, name, err)
	}
	return nil
}

// ListServices returns service records matching the filter plus the total match count.
func (s *MongoStore) ListServices(ctx context.Context, f ServiceFilter) ([]*models.ServiceMetadata, int64, error) {
	query := bson.M{}
	if f.Namespace != "" {
		query["namespace"] = f.Namespace
	}
	if f.DiscoveredOnly {
		query["discovered_from_k8s"] = true
	}

	coll := s.db.Collection(collServices)
	total, err := coll.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("counting services: %w", err)
	}

	opts := options.Find().SetSort(bson.D{{Key: "namespace", Value: 1}, {Key: "service_name", Value: 1}})
	if f.Skip > 0 {
		opts.SetSkip(f.Skip)
	}
	if f.Limit > 0 {
		opts.SetLimit(f.Limit)
	}

	cursor, err := coll.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("listing services: %w", err)
	}
	var out []*models.ServiceMetadata
	if err := cursor.All(ctx, &out); err != nil {
		return nil, 0, fmt.Errorf("decoding services: %w", err)
	}
	return out, total, nil
}

// DeleteService removes a service record, reporting whether one existed.
func (s *MongoStore) DeleteService(ctx context.Context, name, namespace string) (bool, error) {
	res, err := s.db.Collection(collServices).DeleteOne(ctx,
		bson.M{"service_name": name, "namespace": namespace})
	if err != nil {
		return false, fmt.Errorf("deleting service %s/%s: %w", namespace, name, err)
	}
	// Health verdicts for a deleted service are stale by definition.
	if res.DeletedCount > 0 {
		_, _ = s.db.Collection(collServiceHealth).DeleteOne(ctx,
			bson.M{"service_name": name, "namespace": namespace})
	}
	return res.DeletedCount > 0, nil
}

// CountServicesByNamespace groups service records by namespace.
func (s *MongoStore) CountServicesByNamespace(ctx context.Context) ([]models.NamespaceServiceCount, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$namespace"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "discovered_count", Value: bson.D{{Key: "$sum", Value: bson.D{
				{Key: "$cond", Value: bson.A{"$discovered_from_k8s", 1, 0}},
			}}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}

	cursor, err := s.db.Collection(collServices).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregating services by namespace: %w", err)
	}
	var out []models.NamespaceServiceCount
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decoding namespace counts: %w", err)
	}
	return out, nil
}

// UpsertServiceHealth writes a health verdict keyed by the service identity pair.
func (s *MongoStore) UpsertServiceHealth(ctx context.Context, h *models.ServiceHealth) error {
	_, err := s.db.Collection(collServiceHealth).ReplaceOne(ctx,
		bson.M{"service_name": h.ServiceName, "namespace": h.Namespace},
		h, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upserting health for %s/%s: %w", h.Namespace, h.ServiceName, err)
	}
	return nil
}

// GetServiceHealth retrieves the current health verdict for a service.
func (s *MongoStore) GetServiceHealth(ctx context.Context, name, namespace string) (*models.ServiceHealth, error) {
	var h models.ServiceHealth
	err := s.db.Collection(collServiceHealth).
		FindOne(ctx, bson.M{"service_name": name, "namespace": namespace}).
		Decode(&h)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting health for %s/%s: %w", namespace, name, err)
	}
	return &h, nil
}

// ListServiceHealth returns all health verdicts, optionally restricted to one namespace.
func (s *MongoStore) ListServiceHealth(ctx context.Context, namespace string) ([]*models.ServiceHealth, error) {
	query := bson.M{}
	if namespace != "" {
		query["namespace"] = namespace
	}
	cursor, err := s.db.Collection(collServiceHealth).Find(ctx, query,
		options.Find().SetSort(bson.D{{Key: "namespace", Value: 1}, {Key: "service_name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("listing health records: %w", err)
	}
	var out []*models.ServiceHealth
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decoding health records: %w", err)
	}
	return out, nil
}

// InsertSyncJob creates a sync job record.
func (s *MongoStore) InsertSyncJob(ctx context.Context, job *models.SyncJob) error {
	_, err := s.db.Collection(collSyncJobs).InsertOne(ctx, job)
	if err != nil {
		return fmt.Errorf("inserting sync job %s: %w", job.JobID, err)
	}
	return nil
}

// UpdateSyncJob overwrites a sync job record keyed by its job ID.
func (s *MongoStore) UpdateSyncJob(ctx context.Context, job *models.SyncJob) error {
	_, err := s.db.Collection(collSyncJobs).ReplaceOne(ctx,
		bson.M{"job_id": job.JobID}, job)
	if err != nil {
		return fmt.Errorf("updating sync job %s: %w", job.JobID, err)
	}
	return nil
}

// GetSyncJob retrieves a sync job by its ID.
func (s *MongoStore) GetSyncJob(ctx context.Context, jobID string) (*models.SyncJob, error) {
	var job models.SyncJob
	err := s.db.Collection(collSyncJobs).FindOne(ctx, bson.M{"job_id": jobID}).Decode(&job)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting sync job %s: %w", jobID, err)
	}
	return &job, nil
}

// ListSyncJobs returns jobs matching the filter, newest first.
func (s *MongoStore) ListSyncJobs(ctx context.Context, f JobFilter) ([]*models.SyncJob, int64, error) {
	query := bson.M{}
	if f.JobType != "" {
		query["job_type"] = f.JobType
	}
	if f.Status != "" {
		query["status"] = f.Status
	}

	coll := s.db.Collection(collSyncJobs)
	total, err := coll.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("counting sync jobs: %w", err)
	}

	opts := options.Find().SetSort(bson.D{{Key: "started_at", Value: -1}})
	if f.Skip > 0 {
		opts.SetSkip(f.Skip)
	}
	if f.Limit > 0 {
		opts.SetLimit(f.Limit)
	}

	cursor, err := coll.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("listing sync jobs: %w", err)
	}
	var out []*models.SyncJob
	if err := cursor.All(ctx, &out); err != nil {
		return nil, 0, fmt.Errorf("decoding sync jobs: %w", err)
	}
	return out, total, nil
}

// LatestSyncJob returns the most recently started job of the given type.
func (s *MongoStore) LatestSyncJob(ctx context.Context, jobType string) (*models.SyncJob, error) {
	var job models.SyncJob
	err := s.db.Collection(collSyncJobs).
		FindOne(ctx, bson.M{"job_type": jobType},
			options.FindOne().SetSort(bson.D{{Key: "started_at", Value: -1}})).
		Decode(&job)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting latest %s job: %w", jobType, err)
	}
	return &job, nil
}

// DeleteSyncJobsBefore removes terminal jobs started before the cutoff.
func (s *MongoStore) DeleteSyncJobsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.Collection(collSyncJobs).DeleteMany(ctx, bson.M{
		"started_at": bson.M{"$lt": cutoff},
		"status":     bson.M{"$in": bson.A{models.JobStatusCompleted, models.JobStatusFailed}},
	})
	if err != nil {
		return 0, fmt.Errorf("cleaning sync jobs: %w", err)
	}
	return res.DeletedCount, nil
}

// UpsertClusterInfo writes a cluster snapshot keyed by subsystem type.
func (s *MongoStore) UpsertClusterInfo(ctx context.Context, info *models.ClusterInfo) error {
	_, err := s.db.Collection(collClusterInfo).ReplaceOne(ctx,
		bson.M{"cluster_type": info.ClusterType}, info, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upserting cluster info %s: %w", info.ClusterType, err)
	}
	return nil
}

// GetClusterInfo retrieves the snapshot for one cluster subsystem.
func (s *MongoStore) GetClusterInfo(ctx context.Context, clusterType string) (*models.ClusterInfo, error) {
	var info models.ClusterInfo
	err := s.db.Collection(collClusterInfo).
		FindOne(ctx, bson.M{"cluster_type": clusterType}).
		Decode(&info)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting cluster info %s: %w", clusterType, err)
	}
	return &info, nil
}

// Counts reports the current document count per collection.
func (s *MongoStore) Counts(ctx context.Context) (*models.StoreCounts, error) {
	counts := &models.StoreCounts{}
	targets := []struct {
		coll string
		dest *int64
	}{
		{collResources, &counts.Resources},
		{collApplications, &counts.Applications},
		{collServices, &counts.Services},
		{collServiceHealth, &counts.ServiceHealth},
		{collSyncJobs, &counts.SyncJobs},
	}
	for _, t := range targets {
		n, err := s.db.Collection(t.coll).CountDocuments(ctx, bson.M{})
		if err != nil {
			return nil, fmt.Errorf("counting %s: %w", t.coll, err)
		}
		*t.dest = n
	}
	return counts, nil
}
