package synchronizer

import (
	"errors"
	"net/url"

	"plaid-sync/core/logger"
	"plaid-sync/core/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for sync runs.
type Handler struct {
	service  *Service
	accounts []Account
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service, accounts []Account) *Handler {
	return &Handler{service: service, accounts: accounts}
}

// RegisterRoutes registers the sync routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/sync")
	group.Post("/", h.HandleSync)
	group.Get("/last", h.HandleLast)
	group.Get("/stale", h.HandleStale)
	group.Get("/reports", h.HandleListReports)
	group.Get("/reports/*", h.HandleGetReport)
}

// HandleSync runs a sync of every configured account.
// @Summary Run Sync
// @Description Fetches the window from Plaid for every account and reconciles the ledger. Concurrent calls share one run.
// @Tags sync
// @Produce json
// @Param start_date query string false "Window start (YYYY-MM-DD)"
// @Param end_date query string false "Window end (YYYY-MM-DD)"
// @Param balances query boolean false "Snapshot balances"
// @Param dry_run query boolean false "Plan without writing"
// @Success 200 {object} Report "Run report"
// @Failure 400 {object} map[string]string "Bad Request"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /sync [post]
func (h *Handler) HandleSync(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	opts := h.service.DefaultOptions()
	start, err := utils.ParseDate(c.Query("start_date"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	end, err := utils.ParseDate(c.Query("end_date"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if start.IsValid() {
		opts.Window.Start = start
	}
	if end.IsValid() {
		opts.Window.End = end
	}
	if err := opts.Window.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if v := c.Query("balances"); v != "" {
		opts.Balances = utils.ToBool(v)
	}
	opts.DryRun = utils.ToBool(c.Query("dry_run"))

	l.Info("Triggering sync", zap.Stringer("window", opts.Window), zap.Bool("dry_run", opts.DryRun))
	report, shared, err := h.service.Trigger(c.UserContext(), h.accounts, opts)
	if err != nil {
		if errors.Is(err, ErrNoAccounts) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		l.Error("Sync failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if shared {
		l.Info("Joined running sync", zap.String("run_id", report.RunID))
	}

	return c.JSON(report)
}

// HandleLast returns the report of the most recent run.
// @Summary Last Sync Report
// @Tags sync
// @Produce json
// @Success 200 {object} Report "Run report"
// @Failure 404 {object} map[string]string "No run yet"
// @Router /sync/last [get]
func (h *Handler) HandleLast(c *fiber.Ctx) error {
	report := h.service.Last()
	if report == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no sync has completed yet"})
	}
	return c.JSON(report)
}

// HandleStale lists stored items whose updates look unhealthy.
// @Summary Stale Items
// @Tags sync
// @Produce json
// @Success 200 {object} map[string]interface{} "Stale items"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /sync/stale [get]
func (h *Handler) HandleStale(c *fiber.Ctx) error {
	items, err := h.service.StaleItems(c.UserContext())
	if err != nil {
		logger.WithRayID(h.service.logger, c).Error("Stale check failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if items == nil {
		items = []StaleItem{}
	}
	return c.JSON(fiber.Map{"stale": items})
}

// HandleListReports lists exported reports.
// @Summary List Reports
// @Tags sync
// @Produce json
// @Success 200 {object} map[string]interface{} "Report keys"
// @Failure 404 {object} map[string]string "Export disabled"
// @Router /sync/reports [get]
func (h *Handler) HandleListReports(c *fiber.Ctx) error {
	if h.service.exporter == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "report export is disabled"})
	}
	keys, err := h.service.exporter.List(c.UserContext())
	if err != nil {
		logger.WithRayID(h.service.logger, c).Error("Listing reports failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if keys == nil {
		keys = []string{}
	}
	return c.JSON(fiber.Map{"reports": keys})
}

// HandleGetReport returns one exported report.
// @Summary Get Report
// @Tags sync
// @Produce json
// @Param key path string true "Report key"
// @Success 200 {object} Report "Run report"
// @Failure 404 {object} map[string]string "Export disabled"
// @Router /sync/reports/{key} [get]
func (h *Handler) HandleGetReport(c *fiber.Ctx) error {
	if h.service.exporter == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "report export is disabled"})
	}
	key, err := url.PathUnescape(c.Params("*"))
	if err != nil || key == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid report key"})
	}
	report, err := h.service.exporter.Fetch(c.UserContext(), key)
	if err != nil {
		logger.WithRayID(h.service.logger, c).Error("Fetching report failed", zap.String("key", key), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(report)
}
