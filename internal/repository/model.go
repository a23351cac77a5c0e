package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/tictactoe-arena/internal/ai"
)

var ErrModelNotFound = errors.New("model not found")

// ModelRepository stores the trained value table.
type ModelRepository interface {
	Save(ctx context.Context, model *ai.QModel) error
	Load(ctx context.Context) (*ai.QModel, error)
}

type fileModel struct {
	path string
}

func NewFileModelRepository(path string) ModelRepository {
	return &fileModel{path: path}
}

// Save - writes the artifact next to the target and renames it into place.
func (that *fileModel) Save(_ context.Context, model *ai.QModel) error {
	data, err := ai.MarshalModel(model)
	if err != nil {
		return err
	}

	dir := filepath.Dir(that.path)
	if err = os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("could not create model directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(that.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("could not create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("could not write model: %w", err)
	}

	if err = tmp.Close(); err != nil {
		return fmt.Errorf("could not write model: %w", err)
	}

	if err = os.Rename(tmp.Name(), that.path); err != nil {
		return fmt.Errorf("could not move model into place: %w", err)
	}

	return nil
}

func (that *fileModel) Load(_ context.Context) (*ai.QModel, error) {
	data, err := os.ReadFile(that.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, that.path)
	}

	if err != nil {
		return nil, fmt.Errorf("could not read model: %w", err)
	}

	return ai.UnmarshalModel(data)
}

type dbModel struct {
	client *redis.Client
	name   string
}

func NewRedisModelRepository(client *redis.Client, name string) ModelRepository {
	return &dbModel{
		client: client,
		name:   name,
	}
}

func (that *dbModel) key() string {
	return "model:" + that.name
}

func (that *dbModel) Save(ctx context.Context, model *ai.QModel) error {
	data, err := ai.MarshalModel(model)
	if err != nil {
		return err
	}

	if err = that.client.Set(ctx, that.key(), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set model: %w", err)
	}

	return nil
}

func (that *dbModel) Load(ctx context.Context) (*ai.QModel, error) {
	data, err := that.client.Get(ctx, that.key()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, that.key())
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get model: %w", err)
	}

	return ai.UnmarshalModel(data)
}
