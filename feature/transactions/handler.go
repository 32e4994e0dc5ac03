package transactions

import (
	"plaid-sync/core/ledger"
	"plaid-sync/core/logger"
	"plaid-sync/core/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	defaultLimit = 500
	maxLimit     = 5000
)

// Handler handles HTTP requests for stored data.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the query routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	app.Get("/transactions", h.HandleTransactions)
	app.Get("/transactions/summary", h.HandleSummary)
	app.Get("/balances", h.HandleBalances)
	app.Get("/items", h.HandleItems)
}

// parseFilter reads the shared transaction query parameters.
func parseFilter(c *fiber.Ctx) (ledger.Filter, error) {
	start, err := utils.ParseDate(c.Query("start_date"))
	if err != nil {
		return ledger.Filter{}, err
	}
	end, err := utils.ParseDate(c.Query("end_date"))
	if err != nil {
		return ledger.Filter{}, err
	}
	limit := utils.ToInt(c.Query("limit"), defaultLimit)
	if limit <= 0 || limit > maxLimit {
		limit = maxLimit
	}
	return ledger.Filter{
		Start:           start,
		End:             end,
		AccountIDs:      utils.SplitList(c.Query("account")),
		IncludeArchived: utils.ToBool(c.Query("include_archived")),
		Limit:           limit,
	}, nil
}

// HandleTransactions lists stored transactions.
// @Summary List Transactions
// @Description Lists stored transactions ordered by date. Archived rows are excluded unless include_archived is set.
// @Tags transactions
// @Produce json
// @Param start_date query string false "First date (YYYY-MM-DD)"
// @Param end_date query string false "Last date (YYYY-MM-DD)"
// @Param account query string false "Comma separated account ids"
// @Param include_archived query boolean false "Include archived transactions"
// @Param limit query int false "Maximum rows (default 500)"
// @Success 200 {object} map[string]interface{} "Transactions"
// @Failure 400 {object} map[string]string "Bad Request"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /transactions [get]
func (h *Handler) HandleTransactions(c *fiber.Ctx) error {
	f, err := parseFilter(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	txs, err := h.service.List(c.UserContext(), f)
	if err != nil {
		logger.WithRayID(h.service.logger, c).Error("Listing transactions failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{
		"count":        len(txs),
		"transactions": txs,
	})
}

// HandleSummary totals stored transactions per account.
// @Summary Summarize Transactions
// @Tags transactions
// @Produce json
// @Success 200 {object} map[string]interface{} "Totals per account"
// @Router /transactions/summary [get]
func (h *Handler) HandleSummary(c *fiber.Ctx) error {
	f, err := parseFilter(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	// totals cover every matching row
	f.Limit = 0

	txs, err := h.service.List(c.UserContext(), f)
	if err != nil {
		logger.WithRayID(h.service.logger, c).Error("Summarizing transactions failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{"accounts": Summarize(txs)})
}

// HandleBalances lists balance snapshots.
// @Summary List Balances
// @Description Lists the balance snapshots of one day, the most recent day by default.
// @Tags transactions
// @Produce json
// @Param date query string false "Snapshot day (YYYY-MM-DD)"
// @Success 200 {object} map[string]interface{} "Balances"
// @Router /balances [get]
func (h *Handler) HandleBalances(c *fiber.Ctx) error {
	date, err := utils.ParseDate(c.Query("date"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	balances, err := h.service.Balances(c.UserContext(), date)
	if err != nil {
		logger.WithRayID(h.service.logger, c).Error("Listing balances failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{"balances": balances})
}

// HandleItems lists stored items.
// @Summary List Items
// @Tags transactions
// @Produce json
// @Success 200 {object} map[string]interface{} "Items"
// @Router /items [get]
func (h *Handler) HandleItems(c *fiber.Ctx) error {
	items, err := h.service.Items(c.UserContext())
	if err != nil {
		logger.WithRayID(h.service.logger, c).Error("Listing items failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{"items": items})
}
