package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validatePaging(); err != nil {
		return err
	}
	if err := c.validateClassifier(); err != nil {
		return err
	}
	if err := c.validateDeletion(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.PhotosDir == "" {
		return errors.New("paths.photos_dir must be set")
	}
	if c.Paths.StateDir == "" {
		return errors.New("paths.state_dir must be set")
	}
	if c.Paths.TrashDir == "" {
		return errors.New("paths.trash_dir must be set")
	}
	return nil
}

func (c *Config) validatePaging() error {
	if c.Paging.PageSize <= 0 {
		return errors.New("paging.page_size must be positive")
	}
	if c.Paging.MaxFetchAttempts <= 0 {
		return errors.New("paging.max_fetch_attempts must be positive")
	}
	return nil
}

// validateClassifier enforces the threshold range at the configuration
// boundary; the gate itself applies whatever it is handed.
func (c *Config) validateClassifier() error {
	if c.Classifier.Threshold <= 0 || c.Classifier.Threshold > 1 {
		return fmt.Errorf("classifier.threshold must be in (0, 1], got %v", c.Classifier.Threshold)
	}
	if c.Classifier.DecodeEdge <= 0 {
		return errors.New("classifier.decode_edge must be positive")
	}
	return nil
}

func (c *Config) validateDeletion() error {
	if c.Deletion.BatchSize <= 0 {
		return errors.New("deletion.batch_size must be positive")
	}
	return nil
}

func (c *Config) validateCache() error {
	if c.Cache.MaxBytes <= 0 {
		return errors.New("cache.max_bytes must be positive")
	}
	if c.Cache.MaxEntries <= 0 {
		return errors.New("cache.max_entries must be positive")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}
