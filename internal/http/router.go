package http

import (
	"net/http"
	"slices"

	"ourdates/internal/auth"
	"ourdates/internal/config"
	"ourdates/internal/couple"
	"ourdates/internal/dates"
	"ourdates/internal/http/handler"
	mw "ourdates/internal/http/middleware"
	"ourdates/internal/logging"
	"ourdates/internal/realtime"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"gorm.io/gorm"
)

type Deps struct {
	Config  config.Config
	DB      *gorm.DB
	JWT     *auth.JWT
	Log     logging.Logger
	Dates   *dates.Service
	Couples *couple.Service
	Photos  handler.PhotoStore
	Hub     *realtime.Hub
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	if len(d.Config.CORSAllowedOrigins) > 0 {
		r.Use(mw.CORS(d.Config.CORSAllowedOrigins, d.Config.CORSAllowCredentials))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	ah := &handler.AuthHandler{DB: d.DB, JWT: d.JWT, Log: d.Log}
	r.Post("/auth/register", ah.Register)
	r.Post("/auth/login", ah.Login)

	me := &handler.MeHandler{DB: d.DB, Log: d.Log}
	r.With(auth.RequireAuth(d.JWT)).Get("/me", me.Me)

	coupleH := &handler.CoupleHandler{Svc: d.Couples, Photos: d.Photos, Log: d.Log}
	photosH := &handler.PhotosHandler{Photos: d.Photos, Log: d.Log}
	datesH := &handler.DatesHandler{Svc: d.Dates, Log: d.Log}
	datesRead := &handler.DatesReadHandler{Svc: d.Dates, Log: d.Log}
	stream := &handler.StreamHandler{
		Hub:      d.Hub,
		Upgrader: websocket.Upgrader{CheckOrigin: checkOrigin(d.Config.CORSAllowedOrigins)},
		Log:      d.Log,
	}

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(d.JWT))
		r.Use(mw.RequireSession(d.Couples, d.Log))

		r.Route("/couple", func(r chi.Router) {
			r.Post("/", coupleH.Create)
			r.Post("/join", coupleH.Join)
			r.Get("/", coupleH.Info)

			r.With(mw.RequireCouple).Put("/photo", coupleH.SetPhoto)
			r.With(mw.RequireCouple).Delete("/photo", coupleH.ClearPhoto)
		})

		r.Route("/photos", func(r chi.Router) {
			r.Use(mw.RequireCouple)

			r.Post("/", photosH.Upload)
			r.Delete("/", photosH.Delete)
		})

		r.Route("/dates", func(r chi.Router) {
			r.Use(mw.RequireCouple)

			r.Get("/", datesRead.List)
			r.Post("/", datesH.Create)

			r.Get("/months", datesRead.Months)
			r.Get("/stream", stream.Serve)

			r.Patch("/{id}", datesH.Patch)
			r.Post("/{id}/complete", datesH.Complete)
			r.Delete("/{id}", datesH.Delete)
		})
	})

	return r
}

// checkOrigin allows any origin when CORS is not configured; the stream is
// token-authenticated either way.
func checkOrigin(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}
