// SPDX-License-Identifier: MPL-2.0

// Package container builds images with Docker or Podman.
//
// The Engine interface covers what image mode needs: Build, ImageExists
// and RemoveImage (forced rebuilds drop the stale tag first). DockerEngine and PodmanEngine both embed
// BaseCLIEngine for argument construction and command execution. Builds are
// retried with exponential backoff when the engine fails transiently.
//
// Engine selection uses NewEngine(EngineType) with automatic fallback if the
// preferred engine is unavailable, or AutoDetectEngine() when no preference
// is configured (Podman is tried first).
package container
