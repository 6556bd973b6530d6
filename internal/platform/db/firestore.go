package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
)

// ConnectFirestore opens a Firestore client for the given project. When a
// credentials file is configured it overrides application default credentials.
func ConnectFirestore(
	ctx context.Context,
	projectID string,
	credentialsFile string,
	logger *slog.Logger,
) (*firestore.Client, error) {
	if projectID == "" {
		return nil, errors.New("firestore project id is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("open firestore client: %w", err)
	}

	logger.Info("firestore connected",
		"event", "firestore_connected",
		"module", "internal/platform/db",
		"layer", "platform",
		"project_id", projectID,
	)
	return client, nil
}
