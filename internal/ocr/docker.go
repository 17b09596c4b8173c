package ocr

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/google/uuid"
)

const (
	// DefaultOCRmyPDFImage is the upstream ocrmypdf container image.
	DefaultOCRmyPDFImage = "jbarlow83/ocrmypdf:latest"

	containerWorkDir = "/work"
	containerLabel   = "folio.ocr"
)

// DockerOCRmyPDF runs ocrmypdf inside a throwaway container with the
// page's scratch directory bind-mounted.
type DockerOCRmyPDF struct {
	Image     string   // Default DefaultOCRmyPDFImage
	Languages []string // Default DefaultLanguages

	cli *client.Client
}

// NewDockerOCRmyPDF connects to the local Docker daemon.
func NewDockerOCRmyPDF(img string, langs []string) (*DockerOCRmyPDF, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	if img == "" {
		img = DefaultOCRmyPDFImage
	}
	return &DockerOCRmyPDF{Image: img, Languages: langs, cli: cli}, nil
}

func (d *DockerOCRmyPDF) Name() string { return "ocrmypdf-docker" }

// Close releases the Docker client.
func (d *DockerOCRmyPDF) Close() error {
	return d.cli.Close()
}

// Recognize runs the container to completion and reads the sidecar it wrote.
func (d *DockerOCRmyPDF) Recognize(ctx context.Context, pagePDF, workDir string) (string, error) {
	absWork, err := filepath.Abs(workDir)
	if err != nil {
		return "", err
	}
	if err := d.ensureImage(ctx); err != nil {
		return "", err
	}

	base := filepath.Base(pagePDF)
	stem := base[:len(base)-len(filepath.Ext(base))]
	sidecar := stem + ".txt"
	args := ocrmypdfArgs(d.Languages,
		containerWorkDir+"/"+base,
		containerWorkDir+"/"+stem+".ocr.pdf",
		containerWorkDir+"/"+sidecar)

	resp, err := d.cli.ContainerCreate(ctx,
		&container.Config{
			Image:  d.Image,
			Cmd:    args,
			User:   fmt.Sprintf("%d:%d", os.Getuid(), os.Getgid()),
			Labels: map[string]string{containerLabel: "true"},
		},
		&container.HostConfig{
			Mounts: []mount.Mount{{
				Type:   mount.TypeBind,
				Source: absWork,
				Target: containerWorkDir,
			}},
		},
		nil, nil, "folio-ocr-"+uuid.NewString()[:8])
	if err != nil {
		return "", fmt.Errorf("failed to create container: %w", err)
	}
	defer func() {
		_ = d.cli.ContainerRemove(context.WithoutCancel(ctx), resp.ID, container.RemoveOptions{Force: true})
	}()

	if err := d.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return "", fmt.Errorf("failed to start container: %w", err)
	}

	waitCh, errCh := d.cli.ContainerWait(ctx, resp.ID, container.WaitConditionNotRunning)
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case err := <-errCh:
		return "", fmt.Errorf("wait for container: %w", err)
	case res := <-waitCh:
		if res.StatusCode != 0 {
			return "", fmt.Errorf("ocrmypdf exited with status %d: %s", res.StatusCode, d.logs(ctx, resp.ID))
		}
	}

	return readSidecar(filepath.Join(absWork, sidecar))
}

func (d *DockerOCRmyPDF) ensureImage(ctx context.Context) error {
	if _, err := d.cli.ImageInspect(ctx, d.Image); err == nil {
		return nil
	}
	reader, err := d.cli.ImagePull(ctx, d.Image, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image: %w", err)
	}
	defer reader.Close()
	_, err = io.Copy(io.Discard, reader)
	return err
}

func (d *DockerOCRmyPDF) logs(ctx context.Context, id string) string {
	rc, err := d.cli.ContainerLogs(ctx, id, container.LogsOptions{ShowStdout: true, ShowStderr: true, Tail: "20"})
	if err != nil {
		return err.Error()
	}
	defer rc.Close()
	var out bytes.Buffer
	_, _ = stdcopy.StdCopy(&out, &out, rc)
	return tail(out.Bytes(), 512)
}
