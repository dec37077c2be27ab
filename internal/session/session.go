// Package session provides the per-run engine handle: storage connectors,
// worker budget, scratch space and the time zone used for rendering times.
package session

import (
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	awssession "github.com/aws/aws-sdk-go/aws/session"
	"go.uber.org/zap"

	"sparkify_etl/internal/config"
	"sparkify_etl/internal/storage"
)

type Session struct {
	log      *zap.Logger
	aws      awsConfig
	awsSess  *awssession.Session
	workers  int
	tempDir  string
	location *time.Location
	strategy string
}

type awsConfig struct {
	region    string
	endpoint  string
	pathStyle bool
	creds     *credentials.Credentials
}

// New acquires a session from cfg. The AWS credentials are captured here
// and only ever used by this session's S3 connector.
func New(cfg config.Config, log *zap.Logger) (*Session, error) {
	if log == nil {
		log = zap.NewNop()
	}

	loc, err := time.LoadLocation(cfg.Engine.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Engine.Timezone, err)
	}
	if err := os.MkdirAll(cfg.Engine.TempDir, 0o755); err != nil {
		return nil, fmt.Errorf("create temp directory: %w", err)
	}
	tempDir, err := os.MkdirTemp(cfg.Engine.TempDir, "run-*")
	if err != nil {
		return nil, fmt.Errorf("create run directory: %w", err)
	}

	s := &Session{
		log: log,
		aws: awsConfig{
			region:    cfg.AWS.Region,
			endpoint:  cfg.AWS.Endpoint,
			pathStyle: cfg.AWS.PathStyle,
		},
		workers:  cfg.Engine.Workers,
		tempDir:  tempDir,
		location: loc,
		strategy: cfg.Join.Strategy,
	}
	if cfg.AWS.HasStaticCredentials() {
		s.aws.creds = credentials.NewStaticCredentials(cfg.AWS.AccessKeyID, cfg.AWS.SecretAccessKey, "")
	}

	log.Info("session created",
		zap.Int("workers", s.workers),
		zap.String("temp_dir", s.tempDir),
		zap.String("timezone", loc.String()),
		zap.String("join_strategy", s.strategy),
		zap.Bool("static_credentials", s.aws.creds != nil),
	)
	return s, nil
}

// Store resolves uri to a storage connector.
func (s *Session) Store(uri string) (storage.Store, error) {
	loc, err := storage.ParseLocation(uri)
	if err != nil {
		return nil, err
	}
	switch loc.Scheme {
	case storage.SchemeS3:
		sess, err := s.awsSession()
		if err != nil {
			return nil, err
		}
		return storage.NewS3Store(sess, loc.Bucket, loc.Prefix), nil
	default:
		return storage.NewLocalStore(loc.Prefix), nil
	}
}

// awsSession is created on first use so local-only runs never touch AWS.
func (s *Session) awsSession() (*awssession.Session, error) {
	if s.awsSess != nil {
		return s.awsSess, nil
	}

	awsCfg := &aws.Config{
		Region:           aws.String(s.aws.region),
		S3ForcePathStyle: aws.Bool(s.aws.pathStyle),
	}
	if s.aws.endpoint != "" {
		awsCfg.Endpoint = aws.String(s.aws.endpoint)
	}
	if s.aws.creds != nil {
		awsCfg.Credentials = s.aws.creds
	}

	sess, err := awssession.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("create aws session: %w", err)
	}
	s.awsSess = sess
	return sess, nil
}

func (s *Session) Workers() int { return s.workers }
func (s *Session) TempDir() string { return s.tempDir }
func (s *Session) Location() *time.Location { return s.location }
func (s *Session) JoinStrategy() string { return s.strategy }
func (s *Session) Logger() *zap.Logger { return s.log }

// Close removes the run's scratch directory.
func (s *Session) Close() error {
	if err := os.RemoveAll(s.tempDir); err != nil {
		return fmt.Errorf("remove temp directory %s: %w", s.tempDir, err)
	}
	return nil
}
