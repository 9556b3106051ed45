package httpserver

import (
	"net/http"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/fleetkeeper/fleetkeeper/internal/blob"
	"github.com/fleetkeeper/fleetkeeper/internal/handlers"
	"github.com/fleetkeeper/fleetkeeper/internal/middleware/session"
	"github.com/fleetkeeper/fleetkeeper/internal/mykafka"
	"github.com/fleetkeeper/fleetkeeper/internal/service/records"
	"github.com/fleetkeeper/fleetkeeper/internal/service/search"
)

// Deps carries everything the handlers need. Producer and ES may be nil when
// the corresponding backend is not configured.
type Deps struct {
	DB       *gorm.DB
	Sessions *session.Service
	Blob     blob.Store
	Producer *mykafka.Producer
	ES       *elasticsearch.Client
}

func Register(e *echo.Echo, d Deps) {
	recorder := &records.Recorder{DB: d.DB, Blob: d.Blob}

	auth := &handlers.AuthHandler{DB: d.DB, Sessions: d.Sessions, Producer: d.Producer}
	equipment := &handlers.EquipmentHandler{DB: d.DB, Producer: d.Producer, ES: d.ES, ESIndex: search.DefaultIndex}
	record := &handlers.RecordHandler{Recorder: recorder, Producer: d.Producer}
	attachment := &handlers.AttachmentHandler{DB: d.DB, Blob: d.Blob}
	checkIn := &handlers.CheckInHandler{DB: d.DB, Producer: d.Producer}
	report := &handlers.ReportHandler{DB: d.DB, Recorder: recorder}
	bids := &handlers.BidHandler{DB: d.DB, Producer: d.Producer}
	auditTrail := &handlers.AuditHandler{DB: d.DB}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})

	// Public check-in, reachable without a session. The token is the only
	// credential.
	e.GET("/checkin/:token", checkIn.Show)
	e.POST("/checkin/:token", checkIn.Submit)

	api := e.Group("/api/v1")

	api.POST("/register", auth.Register)
	api.POST("/login", auth.Login)
	api.POST("/logout", auth.Logout)

	user := api.Group("", d.Sessions.RequireLogin)
	user.GET("/me", auth.Me)

	user.GET("/equipment", equipment.List)
	user.GET("/equipment/search", equipment.Search)
	user.GET("/equipment/:id", equipment.Get)

	user.POST("/equipment/:id/services", record.CreateService)
	user.GET("/equipment/:id/services", record.ListServices)
	user.POST("/equipment/:id/repairs", record.CreateRepair)
	user.GET("/equipment/:id/repairs", record.ListRepairs)

	user.GET("/attachments/:kind/:id/download", attachment.Download)
	user.GET("/attachments/:kind/:id/view", attachment.View)

	user.GET("/equipment/:id/report.csv", report.CSV)
	user.GET("/equipment/:id/report.xlsx", report.XLSX)

	user.POST("/bids/bulk", bids.BulkCreate)
	user.GET("/bids", bids.List)
	user.PATCH("/bids/:id", bids.Update)
	user.DELETE("/bids/:id", bids.Delete)

	user.GET("/audit", auditTrail.List)

	admin := api.Group("", d.Sessions.RequireLogin, d.Sessions.RequireAdmin)
	admin.POST("/equipment", equipment.Create)
	admin.PATCH("/equipment/:id", equipment.Update)
	admin.DELETE("/equipment/:id", equipment.Delete)
	admin.GET("/equipment/:id/qr", equipment.QRImage)
}
