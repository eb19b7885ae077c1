package application

import (
	"reflect"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/roster-sync/pkg/eventbus"
)

type ApplicationOptions struct {
	Logger   *logrus.Logger
	EventBus eventbus.EventBus
}

func New(opts *ApplicationOptions) Application {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	bus := opts.EventBus
	if bus == nil {
		bus = eventbus.NewEventPublisher(logger)
	}
	return &application{
		logger:   logger,
		eventBus: bus,
		services: make(map[reflect.Type]interface{}),
	}
}

type application struct {
	logger      *logrus.Logger
	eventBus    eventbus.EventBus
	controllers map[string]Controller
	order       []string
	middleware  []mux.MiddlewareFunc
	services    map[reflect.Type]interface{}
}

func (app *application) Logger() *logrus.Logger {
	return app.logger
}

func (app *application) EventPublisher() eventbus.EventBus {
	return app.eventBus
}

// Controllers returns controllers in registration order. Registering a key twice keeps the last one.
func (app *application) Controllers() []Controller {
	out := make([]Controller, 0, len(app.order))
	for _, key := range app.order {
		out = append(out, app.controllers[key])
	}
	return out
}

func (app *application) Middleware() []mux.MiddlewareFunc {
	return app.middleware
}

func (app *application) RegisterControllers(controllers ...Controller) {
	if app.controllers == nil {
		app.controllers = make(map[string]Controller)
	}
	for _, c := range controllers {
		if _, ok := app.controllers[c.Key()]; !ok {
			app.order = append(app.order, c.Key())
		}
		app.controllers[c.Key()] = c
	}
}

func (app *application) RegisterMiddleware(middleware ...mux.MiddlewareFunc) {
	app.middleware = append(app.middleware, middleware...)
}

func (app *application) RegisterServices(services ...interface{}) {
	for _, service := range services {
		app.services[reflect.TypeOf(service).Elem()] = service
	}
}

// Service looks a registered service up by the type of the given pointer, e.g. Service(&ImportService{}).
func (app *application) Service(service interface{}) interface{} {
	svc, ok := app.services[reflect.TypeOf(service).Elem()]
	if !ok {
		panic("service " + reflect.TypeOf(service).Elem().Name() + " not found")
	}
	return svc
}

func (app *application) Services() map[reflect.Type]interface{} {
	return app.services
}
