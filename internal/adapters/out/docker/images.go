package docker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bnema/zerowrap"
	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"

	"github.com/rcarmo/guerite/internal/boundaries/out"
	"github.com/rcarmo/guerite/internal/domain"
)

// PullImage pulls the given reference and returns the resulting local
// image id, read back via InspectImageID once the pull completes.
func (r *Runtime) PullImage(ctx context.Context, ref string) (string, error) {
	ctx = zerowrap.CtxWithFields(ctx, map[string]any{
		zerowrap.FieldLayer:   "adapter",
		zerowrap.FieldAdapter: "docker",
		zerowrap.FieldAction:  "PullImage",
		"image":               ref,
	})
	log := zerowrap.FromCtx(ctx)

	log.Info().Msg("pulling image")
	reader, err := r.client.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return "", log.WrapErr(err, "failed to pull image")
	}
	defer reader.Close()

	if _, err := io.Copy(io.Discard, reader); err != nil {
		return "", log.WrapErr(err, "failed to read pull response")
	}

	id, err := r.InspectImageID(ctx, ref)
	if err != nil {
		return "", log.WrapErr(err, "pulled image but could not resolve its id")
	}
	log.Info().Str("image_id", id).Msg("image pulled")
	return id, nil
}

// InspectImageID returns the id of a locally cached image without pulling,
// or domain.ErrImageNotFound if the reference isn't present locally.
func (r *Runtime) InspectImageID(ctx context.Context, ref string) (string, error) {
	ctx = zerowrap.CtxWithFields(ctx, map[string]any{
		zerowrap.FieldLayer:   "adapter",
		zerowrap.FieldAdapter: "docker",
		zerowrap.FieldAction:  "InspectImageID",
		"image":               ref,
	})
	log := zerowrap.FromCtx(ctx)

	inspect, err := r.client.ImageInspect(ctx, ref)
	if err != nil {
		if cerrdefs.IsNotFound(err) {
			return "", domain.ErrImageNotFound
		}
		return "", log.WrapErr(err, "failed to inspect image")
	}
	return inspect.ID, nil
}

// RemoveImage removes a locally cached image.
func (r *Runtime) RemoveImage(ctx context.Context, imageID string, force bool) error {
	ctx = zerowrap.CtxWithFields(ctx, map[string]any{
		zerowrap.FieldLayer:   "adapter",
		zerowrap.FieldAdapter: "docker",
		zerowrap.FieldAction:  "RemoveImage",
		"image":               imageID,
		"force":               force,
	})
	log := zerowrap.FromCtx(ctx)

	if _, err := r.client.ImageRemove(ctx, imageID, image.RemoveOptions{Force: force}); err != nil {
		if cerrdefs.IsNotFound(err) {
			log.Debug().Msg("image not found, already removed")
			return nil
		}
		return log.WrapErr(err, "failed to remove image")
	}
	log.Info().Msg("image removed")
	return nil
}

// ListImagesDetailed returns every locally cached image.
func (r *Runtime) ListImagesDetailed(ctx context.Context) ([]out.ImageSummary, error) {
	ctx = zerowrap.CtxWithFields(ctx, map[string]any{
		zerowrap.FieldLayer:   "adapter",
		zerowrap.FieldAdapter: "docker",
		zerowrap.FieldAction:  "ListImagesDetailed",
	})
	log := zerowrap.FromCtx(ctx)

	images, err := r.client.ImageList(ctx, image.ListOptions{All: true})
	if err != nil {
		return nil, log.WrapErr(err, "failed to list images")
	}

	result := make([]out.ImageSummary, 0, len(images))
	for _, img := range images {
		result = append(result, out.ImageSummary{
			ID:       img.ID,
			RepoTags: img.RepoTags,
			Size:     img.Size,
			Created:  time.Unix(img.Created, 0),
		})
	}
	return result, nil
}

// pruneResponse mirrors the daemon's /images/prune payload with
// SpaceReclaimed left as uint64 so an out-of-int64-range value can be
// detected before the narrowing cast, instead of wrapping silently.
type pruneResponse struct {
	ImagesDeleted []struct {
		Deleted  string `json:"Deleted,omitempty"`
		Untagged string `json:"Untagged,omitempty"`
	} `json:"ImagesDeleted"`
	SpaceReclaimed uint64 `json:"SpaceReclaimed"`
}

// PruneImages removes unused images via a raw call to the daemon's prune
// endpoint. The typed SDK method reports SpaceReclaimed as uint64, which
// would silently wrap when narrowed to the int64 this component tracks; the
// raw decode below lets an out-of-range value be rejected explicitly.
func (r *Runtime) PruneImages(ctx context.Context, danglingOnly bool) (out.PruneReport, error) {
	ctx = zerowrap.CtxWithFields(ctx, map[string]any{
		zerowrap.FieldLayer:   "adapter",
		zerowrap.FieldAdapter: "docker",
		zerowrap.FieldAction:  "PruneImages",
		"dangling_only":       danglingOnly,
	})
	log := zerowrap.FromCtx(ctx)

	args := filters.NewArgs(filters.Arg("dangling", strconv.FormatBool(danglingOnly)))
	encoded, err := filters.ToJSON(args)
	if err != nil {
		return out.PruneReport{}, log.WrapErr(err, "failed to encode prune filters")
	}

	query := url.Values{}
	query.Set("filters", encoded)

	resp, err := r.doRaw(ctx, http.MethodPost, "/images/prune", query, nil)
	if err != nil {
		return out.PruneReport{}, log.WrapErr(err, "failed to prune images")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return out.PruneReport{}, log.WrapErr(err, "failed to read prune response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return out.PruneReport{}, fmt.Errorf("prune images: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var parsed pruneResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return out.PruneReport{}, log.WrapErr(err, "failed to decode prune response")
	}
	if parsed.SpaceReclaimed > math.MaxInt64 {
		return out.PruneReport{}, fmt.Errorf("prune images: space reclaimed %d overflows int64", parsed.SpaceReclaimed)
	}

	ids := make([]string, 0, len(parsed.ImagesDeleted))
	for _, d := range parsed.ImagesDeleted {
		if d.Deleted != "" {
			ids = append(ids, d.Deleted)
		}
		if d.Untagged != "" {
			ids = append(ids, d.Untagged)
		}
	}

	report := out.PruneReport{DeletedIDs: ids, SpaceReclaimed: int64(parsed.SpaceReclaimed)}
	log.Info().Int("images_deleted", len(ids)).Int64("space_reclaimed", report.SpaceReclaimed).Msg("images pruned")
	return report, nil
}

// doRaw issues a request directly against the daemon's HTTP endpoint,
// bypassing the typed SDK for the handful of calls whose response shape the
// SDK can't represent precisely enough (see PruneImages).
func (r *Runtime) doRaw(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Response, error) {
	u := r.baseURL() + "/v" + r.client.ClientVersion() + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	return r.client.HTTPClient().Do(req)
}

// baseURL resolves the scheme+host portion of daemon requests. The daemon
// speaks plain HTTP regardless of transport (unix socket, named pipe, or
// TCP); "docker" is a placeholder host used when the transport doesn't
// carry one, matching the convention the SDK itself uses internally.
func (r *Runtime) baseURL() string {
	host := r.client.DaemonHost()
	if strings.HasPrefix(host, "tcp://") {
		return "http://" + strings.TrimPrefix(host, "tcp://")
	}
	return "http://docker"
}
