package romma

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"golang.org/x/net/html/charset"

	"github.com/flybeeper/balises-backend/internal/metrics"
	"github.com/flybeeper/balises-backend/internal/models"
)

const (
	// Формат времени в фиде наблюдений, местное время Франции
	readingDateLayout = "02-01-2006 15:04"

	// Значение "нет данных" в фиде
	missingValue = "--"
)

var paris = mustLoadLocation("Europe/Paris")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(fmt.Sprintf("romma: timezone %s: %v", name, err))
	}
	return loc
}

// Французская роза ветров из 16 румбов, O = запад
var compass = map[string]int{
	"N": 0, "NNE": 22, "NE": 45, "ENE": 67,
	"E": 90, "ESE": 112, "SE": 135, "SSE": 157,
	"S": 180, "SSO": 202, "SO": 225, "OSO": 247,
	"O": 270, "ONO": 292, "NO": 315, "NNO": 337,
}

type xmlStation struct {
	ID        string `xml:"id"`
	Name      string `xml:"nom"`
	Latitude  string `xml:"latitude"`
	Longitude string `xml:"longitude"`
	Altitude  string `xml:"altitude"`
}

type xmlReading struct {
	StationID   string `xml:"stationID"`
	Date        string `xml:"date"`
	WindAvg     string `xml:"vitesseVentMoy10min"`
	Direction   string `xml:"directionVentInst"`
	Temperature string `xml:"temperature"`
}

// parseDirection переводит румб в градусы
func parseDirection(s string) (int, bool) {
	deg, ok := compass[strings.ToUpper(strings.TrimSpace(s))]
	return deg, ok
}

// parseReadingDate переводит местное время ROMMA в UTC
func parseReadingDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(readingDateLayout, strings.TrimSpace(s), paris)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// parseNumber принимает десятичную точку и запятую; "--" и пустая строка дают nil
func parseNumber(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == missingValue {
		return nil, nil
	}
	v, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// eachElement декодирует каждый элемент name из потока
func eachElement(r io.Reader, name string, fn func(d *xml.Decoder, start xml.StartElement) error) error {
	d := xml.NewDecoder(r)
	d.CharsetReader = charset.NewReaderLabel

	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if start, ok := tok.(xml.StartElement); ok && start.Name.Local == name {
			if err := fn(d, start); err != nil {
				return err
			}
		}
	}
}

// parseStations читает список станций. Непригодные записи пропускаются.
func (p *Provider) parseStations(r io.Reader, now time.Time) ([]*models.Station, error) {
	var stations []*models.Station

	err := eachElement(r, "station", func(d *xml.Decoder, start xml.StartElement) error {
		var xs xmlStation
		if err := d.DecodeElement(&xs, &start); err != nil {
			return err
		}

		s, err := p.toStation(xs, now)
		metrics.RecordValidation(p.cfg.Name, "stations", err == nil)
		if err != nil {
			p.logger.WithFields(map[string]interface{}{
				"station": xs.ID,
				"error":   err,
			}).Debug("Skipping invalid station")
			return nil
		}

		stations = append(stations, s)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return stations, nil
}

func (p *Provider) toStation(xs xmlStation, now time.Time) (*models.Station, error) {
	s := p.NewStation()
	s.SetID(strings.TrimSpace(xs.ID))
	s.Name = strings.TrimSpace(xs.Name)
	s.Country = p.cfg.Country
	s.UpdatedAt = now

	lat, err := parseNumber(xs.Latitude)
	if err != nil {
		return nil, fmt.Errorf("invalid latitude: %w", err)
	}
	lon, err := parseNumber(xs.Longitude)
	if err != nil {
		return nil, fmt.Errorf("invalid longitude: %w", err)
	}
	if lat != nil && lon != nil {
		s.Position = &models.GeoPoint{Latitude: *lat, Longitude: *lon}
	}

	alt, err := parseNumber(xs.Altitude)
	if err != nil {
		return nil, fmt.Errorf("invalid altitude: %w", err)
	}
	if alt != nil {
		s.Altitude = models.Int(int(*alt))
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// parseReadings читает наблюдения. Поле, которое не удалось разобрать,
// остается пустым; наблюдение без id или с недопустимыми значениями пропускается.
func (p *Provider) parseReadings(r io.Reader) (map[string]*models.Reading, error) {
	readings := make(map[string]*models.Reading)

	err := eachElement(r, "releve", func(d *xml.Decoder, start xml.StartElement) error {
		var xr xmlReading
		if err := d.DecodeElement(&xr, &start); err != nil {
			return err
		}

		rd := p.toReading(xr)
		err := rd.Validate()
		metrics.RecordValidation(p.cfg.Name, "readings", err == nil)
		if err != nil {
			p.logger.WithFields(map[string]interface{}{
				"station": xr.StationID,
				"error":   err,
			}).Debug("Skipping invalid reading")
			return nil
		}

		readings[rd.ID()] = rd
		return nil
	})
	if err != nil {
		return nil, err
	}

	return readings, nil
}

func (p *Provider) toReading(xr xmlReading) *models.Reading {
	rd := p.NewReading()
	rd.SetID(strings.TrimSpace(xr.StationID))

	fieldErr := func(field string, err error) {
		p.logger.WithFields(map[string]interface{}{
			"station": rd.ID(),
			"field":   field,
			"error":   err,
		}).Debug("Ignoring unparsable field")
	}

	if xr.Date != "" {
		if t, err := parseReadingDate(xr.Date); err != nil {
			fieldErr("date", err)
		} else {
			rd.Date = t
		}
	}

	if v, err := parseNumber(xr.WindAvg); err != nil {
		fieldErr("wind_avg", err)
	} else {
		rd.WindAvg = v
	}

	if deg, ok := parseDirection(xr.Direction); ok {
		rd.DirectionAvg = models.Int(deg)
	}

	if v, err := parseNumber(xr.Temperature); err != nil {
		fieldErr("temperature", err)
	} else {
		rd.Temperature = v
	}

	return rd
}
