package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"consulta-backend/controllers"
	"consulta-backend/middlewares"
	"consulta-backend/models"
)

// Register wires all HTTP routes.
func Register(app *fiber.App, h *controllers.Handler) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")

	// Public site
	api.Get("/therapists", h.ListTherapists)
	api.Get("/therapists/:slug", h.GetTherapist)
	api.Get("/workshops", h.ListWorkshops)
	api.Get("/workshops/:slug", h.GetWorkshop)
	api.Post("/workshops/:id/register", h.RegisterForWorkshop)
	api.Get("/posts", h.ListPosts)
	api.Get("/posts/:slug", h.GetPost)
	api.Get("/pricing", h.ListPricing)
	api.Post("/contact", h.SubmitContact)
	api.Post("/auth/login", h.Login)

	// Any logged-in user (JWT auth)
	protected := api.Group("", h.Auth.IsAuthenticatedHeader())
	protected.Get("/auth/me", h.Me)
	protected.Put("/auth/change-password", h.ChangePassword)
	protected.Get("/notifications", h.ListNotifications)
	protected.Put("/notifications/read-all", h.MarkAllNotificationsRead)
	protected.Put("/notifications/:id/read", h.MarkNotificationRead)

	// Admin only; Idempotency-Key honored on every mutation below
	admin := protected.Group("", middlewares.RequireRole(models.RoleAdmin), middlewares.Idempotency(h.DB, h.Log))
	admin.Post("/auth/register", h.Register)
	admin.Post("/sync", h.SyncCalendar)

	a := admin.Group("/admin")

	// Therapists
	a.Get("/therapists", h.AdminListTherapists)
	a.Post("/therapists", h.CreateTherapist)
	a.Put("/therapists/:id", h.UpdateTherapist)
	a.Delete("/therapists/:id", h.DeactivateTherapist)
	a.Delete("/therapists/:id/permanent", h.DeleteTherapistPermanent)

	// Workshops
	a.Get("/workshops", h.AdminListWorkshops)
	a.Post("/workshops", h.CreateWorkshop)
	a.Put("/workshops/:id", h.UpdateWorkshop)
	a.Delete("/workshops/:id", h.DeleteWorkshop)
	a.Get("/workshops/:id/registrations", h.ListWorkshopRegistrations)

	// Blog
	a.Get("/posts", h.AdminListPosts)
	a.Post("/posts", h.CreatePost)
	a.Put("/posts/:id", h.UpdatePost)
	a.Delete("/posts/:id", h.DeletePost)

	// Pricing
	a.Get("/pricing", h.AdminListPricing)
	a.Post("/pricing", h.CreatePricingPlan)
	a.Put("/pricing/:id", h.UpdatePricingPlan)
	a.Delete("/pricing/:id", h.DeletePricingPlan)

	// Contact messages
	a.Get("/contact", h.ListContactMessages)
	a.Put("/contact/:id/read", h.MarkContactRead)
	a.Delete("/contact/:id", h.DeleteContactMessage)

	// Patients
	a.Get("/patients", h.ListPatients)
	a.Post("/patients", h.CreatePatient)
	a.Get("/patients/:id", h.GetPatient)
	a.Put("/patients/:id", h.UpdatePatient)
	a.Delete("/patients/:id", h.DeletePatient)

	// Billing
	b := a.Group("/billing")
	b.Get("/preview", h.BillingPreview)
	b.Get("/sessions", h.BillingSessions)
	b.Put("/payments/:eventId", h.UpdatePayment)
	b.Get("/invoices", h.ListInvoices)
	b.Post("/invoices", h.CreateInvoice)
	b.Post("/invoices/recalculate", h.RecalculateInvoices)
	b.Get("/invoices/:id", h.GetInvoice)
	b.Put("/invoices/:id", h.UpdateInvoice)
	b.Delete("/invoices/:id", h.DeleteInvoice)
	b.Put("/invoices/:id/close", h.CloseInvoice)
	b.Post("/invoices/:id/recalculate", h.RecalculateInvoice)

	// Reports and expenses
	a.Get("/reports/quarterly", h.ListQuarterlyReports)
	a.Post("/reports/quarterly/generate", h.GenerateQuarterlyReport)
	a.Get("/expenses", h.ListExpenses)
	a.Post("/expenses", h.CreateExpense)
	a.Put("/expenses/:id", h.UpdateExpense)
	a.Delete("/expenses/:id", h.DeleteExpense)
	a.Get("/recurring-expenses", h.ListRecurringExpenses)
	a.Post("/recurring-expenses", h.CreateRecurringExpense)
	a.Post("/recurring-expenses/generate", h.GenerateRecurringExpenses)
	a.Put("/recurring-expenses/:id", h.UpdateRecurringExpense)
	a.Delete("/recurring-expenses/:id", h.DeleteRecurringExpense)

	// Audit
	a.Get("/audit", h.ListAuditLogs)
}
