package server

import (
	"bytes"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"

	"github.com/hupe1980/kmeanslab"
	"github.com/hupe1980/kmeanslab/dataset"
	"github.com/hupe1980/kmeanslab/internal/plot"
	"github.com/hupe1980/kmeanslab/internal/registry"
)

const (
	defaultClusters  = 4
	maxGeneratePoint = 100_000
	maxGenerateDim   = 64
)

type createRequest struct {
	Seed *uint64 `json:"seed"`
}

type generateRequest struct {
	Points int      `json:"n_points"`
	Dim    int      `json:"dim"`
	Low    *float64 `json:"low"`
	High   *float64 `json:"high"`
	Blobs  int      `json:"blobs"`
	Spread float64  `json:"spread"`
	Seed   *uint64  `json:"seed"`
}

type dataRequest struct {
	Points [][]float64 `json:"data_points"`
}

type initializeRequest struct {
	InitMethod       string      `json:"init_method"`
	Clusters         *int        `json:"n_clusters"`
	InitialCentroids [][]float64 `json:"initial_centroids"`
	MaxIter          *int        `json:"max_iter"`
}

type predictRequest struct {
	Points [][]float64 `json:"points"`
}

type snapshotRequest struct {
	Name string `json:"name"`
}

// bind decodes an optional JSON body into v.
func bind(c *fiber.Ctx, v any) error {
	body := c.Body()
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return badRequest(fmt.Errorf("invalid JSON body: %w", err))
	}
	return nil
}

func (s *Server) health(c *fiber.Ctx) error {
	return success(c, fiber.Map{"sessions": s.sessions.Len()})
}

func (s *Server) createSession(c *fiber.Ctx) error {
	var req createRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	var extra []kmeanslab.Option
	if req.Seed != nil {
		extra = append(extra, kmeanslab.WithSeed(*req.Seed))
	}

	h := s.sessions.Create(extra...)
	s.sessionLogger(c, h.ID).InfoContext(c.UserContext(), "session created")

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"status": "success",
		"id":     h.ID,
		"seed":   h.Session.Seed(),
	})
}

func (s *Server) getSession(c *fiber.Ctx, h *registry.Handle) error {
	sess := h.Session

	body := fiber.Map{
		"id":          h.ID,
		"state":       sess.State(),
		"seed":        sess.Seed(),
		"data_points": len(h.Data()),
	}

	if sess.State() != kmeanslab.StateUninitialized {
		body["config"] = sess.Config()
		body["iterations"] = sess.Iterations()
		body["centroids"] = sess.Centroids()
		body["labels"] = sess.Labels()
		body["cluster_sizes"] = sess.ClusterSizes()
		body["inertia"] = finiteOrNil(sess.Inertia())
	}

	return success(c, body)
}

// finiteOrNil maps values JSON cannot carry, such as an overflowed
// inertia, to null.
func finiteOrNil(v float64) any {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return v
}

func (s *Server) deleteSession(c *fiber.Ctx) error {
	id := c.Params("id")
	if !s.sessions.Delete(id) {
		return registry.ErrNotFound
	}

	s.sessionLogger(c, id).InfoContext(c.UserContext(), "session deleted")

	return success(c, nil)
}

func (s *Server) generateData(c *fiber.Ctx, h *registry.Handle) error {
	req := generateRequest{
		Points: dataset.DefaultPoints,
		Dim:    2,
		Spread: 1,
	}
	if err := bind(c, &req); err != nil {
		return err
	}

	low, high := float64(dataset.DefaultLow), float64(dataset.DefaultHigh)
	if req.Low != nil {
		low = *req.Low
	}
	if req.High != nil {
		high = *req.High
	}

	switch {
	case req.Points < 1 || req.Points > maxGeneratePoint:
		return badRequest(fmt.Errorf("n_points must be between 1 and %d", maxGeneratePoint))
	case req.Dim < 1 || req.Dim > maxGenerateDim:
		return badRequest(fmt.Errorf("dim must be between 1 and %d", maxGenerateDim))
	case !(low < high):
		return badRequest(fmt.Errorf("%w: low %v must be below high %v", dataset.ErrInvalidRange, low, high))
	case req.Blobs < 0 || req.Spread < 0:
		return badRequest(fmt.Errorf("%w: blobs and spread must not be negative", dataset.ErrInvalidRange))
	}

	var rng *rand.Rand
	if req.Seed != nil {
		rng = rand.New(rand.NewPCG(*req.Seed, *req.Seed))
	} else {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	var points [][]float64
	if req.Blobs > 0 {
		points = dataset.Blobs(rng, req.Points, req.Dim, req.Blobs, req.Spread)
	} else {
		points = dataset.Uniform(rng, req.Points, req.Dim, low, high)
	}

	if err := h.SetData(c.UserContext(), points); err != nil {
		return err
	}

	s.sessionLogger(c, h.ID).WithCount(len(points)).WithDimension(req.Dim).DebugContext(c.UserContext(), "data generated")

	return success(c, fiber.Map{"data_points": points})
}

func (s *Server) setData(c *fiber.Ctx, h *registry.Handle) error {
	var req dataRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	if len(req.Points) == 0 {
		return badRequest(kmeanslab.ErrEmptyDataset)
	}

	dim := len(req.Points[0])
	for i, p := range req.Points {
		if len(p) != dim || dim == 0 {
			return badRequest(&kmeanslab.DimensionMismatchError{Index: i, Expected: dim, Actual: len(p)})
		}
	}

	if err := h.SetData(c.UserContext(), req.Points); err != nil {
		return err
	}

	s.sessionLogger(c, h.ID).WithCount(len(req.Points)).WithDimension(dim).DebugContext(c.UserContext(), "data set")

	return success(c, fiber.Map{"data_points": len(req.Points), "dim": dim})
}

func (s *Server) initialize(c *fiber.Ctx, h *registry.Handle) error {
	var req initializeRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	cfg := kmeanslab.Config{
		K:       defaultClusters,
		Init:    kmeanslab.InitRandom,
		MaxIter: kmeanslab.DefaultMaxIter,
	}

	if req.InitMethod != "" {
		m, err := kmeanslab.ParseInitMethod(req.InitMethod)
		if err != nil {
			return badRequest(err)
		}
		cfg.Init = m
	}
	if req.Clusters != nil {
		cfg.K = *req.Clusters
	}
	if req.MaxIter != nil {
		cfg.MaxIter = *req.MaxIter
	}

	if err := h.Session.Initialize(c.UserContext(), cfg, h.Data(), req.InitialCentroids); err != nil {
		return err
	}

	return success(c, fiber.Map{
		"state":     h.Session.State(),
		"centroids": h.Session.Centroids(),
	})
}

func (s *Server) step(c *fiber.Ctx, h *registry.Handle) error {
	res, err := h.Session.Step(c.UserContext())
	if err != nil {
		return err
	}

	return success(c, fiber.Map{
		"centroids": res.Centroids,
		"labels":    res.Labels,
		"converged": res.Converged,
		"iteration": res.Iteration,
		"reseeded":  res.Reseeded,
	})
}

func (s *Server) run(c *fiber.Ctx, h *registry.Handle) error {
	if err := s.acquireRun(c.UserContext()); err != nil {
		return err
	}
	defer s.rc.ReleaseRun()

	res, err := h.Session.Run(c.UserContext())
	if err != nil {
		return err
	}

	return success(c, fiber.Map{
		"centroids":   res.Centroids,
		"labels":      res.Labels,
		"converged":   res.Converged,
		"cap_reached": res.CapReached,
		"iterations":  res.Iterations,
	})
}

func (s *Server) reset(c *fiber.Ctx, h *registry.Handle) error {
	h.Session.Reset(c.UserContext())
	return success(c, fiber.Map{"data_points": len(h.Data())})
}

func (s *Server) predict(c *fiber.Ctx, h *registry.Handle) error {
	var req predictRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	labels, err := h.Session.Predict(c.UserContext(), req.Points)
	if err != nil {
		return err
	}

	return success(c, fiber.Map{"labels": labels})
}

func (s *Server) plot(c *fiber.Ctx, h *registry.Handle) error {
	sess := h.Session

	points := h.Data()
	if sess.State() != kmeanslab.StateUninitialized {
		points = sess.Dataset()
	}

	title := fmt.Sprintf("k-means: %s", sess.State())
	if sess.State() != kmeanslab.StateUninitialized {
		title = fmt.Sprintf("k-means (%s, k=%d): %s after %d iterations",
			sess.Config().Init, sess.Config().K, sess.State(), sess.Iterations())
	}

	var buf bytes.Buffer
	if err := plot.Scatter(&buf, points, sess.Labels(), sess.Centroids(), title); err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Send(buf.Bytes())
}

func (s *Server) saveSnapshot(c *fiber.Ctx, h *registry.Handle) error {
	if s.snapshots == nil {
		return ErrSnapshotsDisabled
	}

	var req snapshotRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	snap := h.Session.Snapshot()
	if snap.State == kmeanslab.StateUninitialized {
		snap.Data = h.Data()
	}

	err := s.snapshots.Save(c.UserContext(), req.Name, snap)
	s.sessionLogger(c, h.ID).LogSnapshot(c.UserContext(), req.Name, err)
	if err != nil {
		return err
	}

	return success(c, fiber.Map{"name": req.Name})
}

func (s *Server) listSnapshots(c *fiber.Ctx) error {
	if s.snapshots == nil {
		return ErrSnapshotsDisabled
	}

	names, err := s.snapshots.List(c.UserContext())
	if err != nil {
		return err
	}

	return success(c, fiber.Map{"snapshots": names})
}

func (s *Server) restoreSnapshot(c *fiber.Ctx) error {
	if s.snapshots == nil {
		return ErrSnapshotsDisabled
	}

	name := c.Params("name")

	snap, err := s.snapshots.Load(c.UserContext(), name)
	if err != nil {
		s.logger.LogRestore(c.UserContext(), name, err)
		return err
	}

	h, err := s.sessions.Restore(c.UserContext(), snap)
	if err != nil {
		s.logger.LogRestore(c.UserContext(), name, err)
		return err
	}

	s.sessionLogger(c, h.ID).LogRestore(c.UserContext(), name, nil)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"status": "success",
		"id":     h.ID,
		"state":  h.Session.State(),
	})
}

func (s *Server) deleteSnapshot(c *fiber.Ctx) error {
	if s.snapshots == nil {
		return ErrSnapshotsDisabled
	}

	if err := s.snapshots.Delete(c.UserContext(), c.Params("name")); err != nil {
		return err
	}

	return success(c, nil)
}
