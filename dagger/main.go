// Package main provides a Dagger module for building and deploying Guardian.
//
// The module is designed to be used with the Dagger CLI or SDKs to automate
// build and deployment workflows.
package main

import (
	"context"
	"dagger/guardian/internal/dagger"
	"fmt"
	"strings"
)

type Guardian struct{}

// binaries are the commands shipped in the container image.
var binaries = []string{"server", "db", "export"}

// BuildContainer creates a container image for the project.
func (m *Guardian) BuildContainer(
	ctx context.Context,
	// Source code directory
	// +required
	src *dagger.Directory,
	// Platform to build for
	// +optional
	// +default="linux/amd64"
	platform *dagger.Platform,
) (*dagger.Container, error) {
	// Use default platform if none specified
	buildPlatform := dagger.Platform("linux/amd64")
	if platform != nil {
		buildPlatform = *platform
	}

	// Get architecture using containerd utility
	platformArch, err := dag.Containerd().ArchitectureOf(ctx, buildPlatform)
	if err != nil {
		return nil, fmt.Errorf("failed to get architecture: %w", err)
	}

	// Create build container
	buildCtr := dag.Container().
		From("golang:1.24.2-alpine").
		WithMountedCache("/go/pkg/mod", dag.CacheVolume("go-mod")).
		WithMountedCache("/root/.cache/go-build", dag.CacheVolume("go-build")).
		WithDirectory("/src", src).
		WithWorkdir("/src").
		WithEnvVariable("CGO_ENABLED", "0").
		WithEnvVariable("GOOS", "linux").
		WithEnvVariable("GOARCH", platformArch).
		WithExec([]string{"mkdir", "-p", "/src/bin"})

	// Build binaries
	for _, binary := range binaries {
		buildCtr = buildCtr.WithExec([]string{
			"go", "build",
			"-ldflags=-s -w",
			"-o", "/src/bin/" + binary,
			"./cmd/" + binary,
		})
	}

	// Video sampling shells out to ffmpeg, so the runtime image needs it
	return dag.Container(dagger.ContainerOpts{Platform: buildPlatform}).
		From("alpine:3.21").
		WithExec([]string{"apk", "add", "--no-cache", "ffmpeg", "ca-certificates"}).
		WithDirectory("/app/bin", buildCtr.Directory("/src/bin")).
		WithExec([]string{"mkdir", "-p", "/app/logs"}).
		WithWorkdir("/app").
		WithExposedPort(5000).
		WithEntrypoint([]string{"/app/bin/server"}), nil
}

// Publish the application container after building it.
func (m *Guardian) Publish(
	ctx context.Context,
	// Source code directory
	// +required
	src *dagger.Directory,
	// Docker image name (e.g. "username/repo:tag")
	// +required
	imageName string,
	// Platforms to build for (comma-separated, e.g. "linux/amd64,linux/arm64")
	// +optional
	// +default="linux/amd64"
	platforms string,
) (string, error) {
	// Parse platforms string
	var platformList []dagger.Platform
	if platforms == "" {
		platformList = []dagger.Platform{"linux/amd64"}
	} else {
		for _, p := range strings.Split(platforms, ",") {
			platformList = append(platformList, dagger.Platform(strings.TrimSpace(p)))
		}
	}

	// Build containers for each platform
	platformVariants := make([]*dagger.Container, 0, len(platformList))
	for _, platform := range platformList {
		container, err := m.BuildContainer(ctx, src, &platform)
		if err != nil {
			return "", fmt.Errorf("failed to build container for %s: %w", platform, err)
		}
		platformVariants = append(platformVariants, container)
	}

	// Publish multi-arch image
	ref, err := dag.Container().Publish(ctx, imageName, dagger.ContainerPublishOpts{
		PlatformVariants: platformVariants,
	})
	if err != nil {
		return "", fmt.Errorf("failed to publish image: %w", err)
	}

	return ref, nil
}

// Test runs the unit test suite.
func (m *Guardian) Test(
	ctx context.Context,
	// Source code directory
	// +required
	src *dagger.Directory,
) (string, error) {
	return dag.Container().
		From("golang:1.24.2-alpine").
		WithMountedCache("/go/pkg/mod", dag.CacheVolume("go-mod")).
		WithMountedCache("/root/.cache/go-build", dag.CacheVolume("go-build")).
		WithExec([]string{"apk", "add", "--no-cache", "ffmpeg", "build-base"}).
		WithDirectory("/src", src).
		WithWorkdir("/src").
		WithExec([]string{"go", "test", "./..."}).
		Stdout(ctx)
}

// Run builds one command and runs it against a config directory.
func (m *Guardian) Run(
	// Source code directory
	// +required
	src *dagger.Directory,
	// Config directory path
	// +required
	configDir *dagger.Directory,
	// Command to run: "server", "export" or "db"
	// +required
	cmd string,
	// Arguments passed to the command (e.g. "migrate")
	// +optional
	args []string,
) *dagger.Container {
	runCtr := dag.Container().
		From("golang:1.24.2-alpine").
		WithMountedCache("/go/pkg/mod", dag.CacheVolume("go-mod")).
		WithMountedCache("/root/.cache/go-build", dag.CacheVolume("go-build")).
		WithExec([]string{"apk", "add", "--no-cache", "ffmpeg", "ca-certificates"}).
		WithDirectory("/src", src).
		WithDirectory("/etc/guardian/config", configDir).
		WithWorkdir("/src").
		WithEnvVariable("CGO_ENABLED", "0").
		WithExec([]string{"go", "build", "-o", "/src/bin/" + cmd, "./cmd/" + cmd})

	return runCtr.WithExec(append([]string{"/src/bin/" + cmd}, args...))
}
