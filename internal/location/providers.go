package location

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/oschwald/geoip2-golang"

	"HibiscusGuard/internal/models"
	"HibiscusGuard/pkg/config"
	"HibiscusGuard/pkg/errors"
)

// ErrPermissionDenied, ErrPositionUnavailable and ErrTimeout are the
// three failure kinds a provider may surface.
func ErrPermissionDenied(msg string) error {
	return errors.WithCode(errors.CodeLocationDenied, msg)
}

func ErrPositionUnavailable(msg string) error {
	return errors.WithCode(errors.CodeLocationUnavailable, msg)
}

func ErrTimeout(msg string) error {
	return errors.WithCode(errors.CodeLocationTimeout, msg)
}

// NewProviderFromConfig builds the platform provider named by the
// configuration.
func NewProviderFromConfig(cfg *config.Config) (Provider, error) {
	switch cfg.LocationProvider {
	case "geoip":
		return NewGeoIPProvider(cfg.GeoIPDatabase, cfg.GeoIPAddress)
	default:
		return NewStaticProvider(cfg.StaticLat, cfg.StaticLng), nil
	}
}

// StaticProvider serves a configured position. Useful for fixed
// installations and local development.
type StaticProvider struct {
	lat, lng float64
}

// NewStaticProvider creates a provider pinned to a point.
func NewStaticProvider(lat, lng float64) *StaticProvider {
	return &StaticProvider{lat: lat, lng: lng}
}

func (p *StaticProvider) fix() models.Fix {
	return models.Fix{Lat: p.lat, Lng: p.lng, Accuracy: 10, Timestamp: time.Now()}
}

// Current returns the configured position.
func (p *StaticProvider) Current(ctx context.Context, opts Options) (models.Fix, error) {
	if p.lat == 0 && p.lng == 0 {
		return models.Fix{}, ErrPositionUnavailable("no static position configured")
	}
	return p.fix(), nil
}

// Watch emits the configured position at the fix-age cadence.
func (p *StaticProvider) Watch(opts Options, onFix func(models.Fix), onErr func(error)) (func(), error) {
	if p.lat == 0 && p.lng == 0 {
		return nil, ErrPositionUnavailable("no static position configured")
	}

	interval := opts.MaxFixAge
	if interval <= 0 {
		interval = 5 * time.Second
	}
	done := make(chan struct{})
	var once sync.Once

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		onFix(p.fix())
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				onFix(p.fix())
			}
		}
	}()

	return func() { once.Do(func() { close(done) }) }, nil
}

// GeoIPProvider resolves a coarse city-level position for a known
// address from a local MaxMind database.
type GeoIPProvider struct {
	db   *geoip2.Reader
	addr net.IP
}

// NewGeoIPProvider opens the database at path for the given address.
func NewGeoIPProvider(path, address string) (*GeoIPProvider, error) {
	ip := net.ParseIP(address)
	if ip == nil {
		return nil, ErrPositionUnavailable("invalid device address for geoip lookup")
	}
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, errors.WrapCode(errors.CodeLocationUnavailable, err, "open geoip database")
	}
	return &GeoIPProvider{db: db, addr: ip}, nil
}

// Current looks the address up in the city database.
func (p *GeoIPProvider) Current(ctx context.Context, opts Options) (models.Fix, error) {
	record, err := p.db.City(p.addr)
	if err != nil {
		return models.Fix{}, errors.WrapCode(errors.CodeLocationUnavailable, err, "geoip lookup failed")
	}
	if record.Location.Latitude == 0 && record.Location.Longitude == 0 {
		return models.Fix{}, ErrPositionUnavailable("address not present in geoip database")
	}
	return models.Fix{
		Lat:       record.Location.Latitude,
		Lng:       record.Location.Longitude,
		Accuracy:  float64(record.Location.AccuracyRadius) * 1000, // km to meters
		Timestamp: time.Now(),
	}, nil
}

// Watch re-resolves at the fix-age cadence. GeoIP positions rarely
// move; the cadence exists so permission errors surface promptly.
func (p *GeoIPProvider) Watch(opts Options, onFix func(models.Fix), onErr func(error)) (func(), error) {
	first, err := p.Current(context.Background(), opts)
	if err != nil {
		return nil, err
	}

	interval := opts.MaxFixAge
	if interval <= 0 {
		interval = 5 * time.Second
	}
	done := make(chan struct{})
	var once sync.Once

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		onFix(first)
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				fix, err := p.Current(context.Background(), opts)
				if err != nil {
					onErr(err)
					return
				}
				onFix(fix)
			}
		}
	}()

	return func() { once.Do(func() { close(done) }) }, nil
}

// Close releases the database handle.
func (p *GeoIPProvider) Close() error {
	return p.db.Close()
}
