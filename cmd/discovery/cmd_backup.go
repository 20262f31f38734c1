// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianDiscovery/cmd/discovery/gcs"
)

// runBackup uploads the badger run-history directory to GCS under a
// timestamped prefix. The store must not be open for writes elsewhere;
// stop the server before backing up.
func runBackup(cmd *cobra.Command, args []string) {
	logger := setupLogging()
	defer logger.Close()

	if backupBucket == "" || backupProject == "" || backupKeyPath == "" {
		OutputError("Missing flags", fmt.Errorf("--bucket, --project, and --sa-key are required"))
	}
	if cfg.Store.InMemory || cfg.Store.Path == "" {
		OutputError("Nothing to back up", fmt.Errorf("store.path is not set or store is in-memory"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	client, err := gcs.NewClient(ctx, backupProject, backupBucket, backupKeyPath)
	if err != nil {
		OutputError("Failed to create GCS client", err)
	}
	defer client.Close()

	prefix := fmt.Sprintf("discovery-backups/%s", time.Now().UTC().Format("2006-01-02_150405"))
	uploaded, err := client.UploadDir(ctx, cfg.Store.Path, prefix)
	if err != nil {
		OutputError("Backup upload failed", err)
	}

	field("Uploaded files", uploaded)
	field("Destination", fmt.Sprintf("gs://%s/%s", backupBucket, prefix))
}
