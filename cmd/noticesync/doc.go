// Package main hosts the notice sync service entrypoint.
//
// Architecture overview:
//   - Sync pipeline: internal/syncer.Coordinator reads the newest listing page of the Ajou notice board through the
//     Colly-based fetcher (per-host rate limited), keeps entries above the stored watermark, and fans out one
//     goroutine per entry to fetch the article, its inline images and a Gemini summary. A failed entry is reported
//     and skipped; the rest of the batch is unaffected.
//   - Ingest: internal/ingest.Runner serializes runs, reads the watermark (max stored id), inserts records with
//     conflict-ignoring semantics so repeated syncs are idempotent, and publishes a notice.synced event per new row.
//   - Persistence & fanout: notices live in Postgres (pgxpool, golang-migrate schema) or in memory when no DSN is
//     configured. Raw article HTML is archived to GCS or memory. Events go to Pub/Sub when a topic is configured.
//   - HTTP API: internal/api.Server exposes GET /api/notices, POST /api/notices/refresh, health probes and /metrics.
//   - Scheduling: internal/scheduler triggers a sync on a cron spec in Asia/Seoul time.
//
// Quick checklist:
//   - Configure env vars: NOTICE_SERVER_PORT, NOTICE_DATABASE_DSN (or DATABASE_URL), NOTICE_SUMMARIZER_API_KEY (or
//     GEMINI_API_KEY), NOTICE_STORAGE_BACKEND/BUCKET, NOTICE_PUBSUB_PROJECT_ID/TOPIC_NAME, NOTICE_SCHEDULER_SPEC.
//   - Run locally: go run ./cmd/noticesync -config config.yaml
//   - One-shot sync: go run ./cmd/noticesync -once > notices.json
package main
