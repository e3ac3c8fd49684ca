package models

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aaroncutress/gtfs-itineraries/internal/csvtab"
)

// Flag for each day of the week
type WeekdayFlag uint8

const (
	MondayWeekdayFlag WeekdayFlag = 1 << iota
	TuesdayWeekdayFlag
	WednesdayWeekdayFlag
	ThursdayWeekdayFlag
	FridayWeekdayFlag
	SaturdayWeekdayFlag
	SundayWeekdayFlag
)

// GTFS dates are written as YYYYMMDD
const DateLayout = "20060102"

// Represents the days of the week a service is active
type Service struct {
	ID        string
	Weekdays  WeekdayFlag
	StartDate time.Time
	EndDate   time.Time
}

// Schema of calendar.txt
type ServiceSchema struct{}

func (ServiceSchema) Name() string       { return "calendar.txt" }
func (ServiceSchema) PrimaryKey() string { return "service_id" }
func (ServiceSchema) Columns() []string {
	return []string{"service_id", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday", "start_date", "end_date"}
}

// Returns the flag for a weekday
func WeekdayFlagOf(day time.Weekday) WeekdayFlag {
	if day == time.Sunday {
		return SundayWeekdayFlag
	}
	return MondayWeekdayFlag << (day - time.Monday)
}

// Checks if the service runs on the given weekday
func (s Service) RunsOn(day time.Weekday) bool {
	return s.Weekdays&WeekdayFlagOf(day) != 0
}

// Parse a YYYYMMDD date
func ParseDate(s string) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q", ErrBadNumber, s)
	}
	return d, nil
}

// Parses a weekday flag from the GTFS calendar.txt file
func parseWeekdayFlag(day string, flag WeekdayFlag) WeekdayFlag {
	if day == "1" {
		return flag
	}
	return 0
}

// Load and parse services from the GTFS calendar.txt file
func ParseServices(dir string) ([]*Service, error) {
	schema := ServiceSchema{}
	reader, err := csvtab.Open(dir, schema.Name(), schema.Columns())
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	var services []*Service
	for {
		record, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		startDate, err := ParseDate(record[8])
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", schema.Name(), reader.Line(), err)
		}
		endDate, err := ParseDate(record[9])
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", schema.Name(), reader.Line(), err)
		}
		weekdays := parseWeekdayFlag(record[1], MondayWeekdayFlag) |
			parseWeekdayFlag(record[2], TuesdayWeekdayFlag) |
			parseWeekdayFlag(record[3], WednesdayWeekdayFlag) |
			parseWeekdayFlag(record[4], ThursdayWeekdayFlag) |
			parseWeekdayFlag(record[5], FridayWeekdayFlag) |
			parseWeekdayFlag(record[6], SaturdayWeekdayFlag) |
			parseWeekdayFlag(record[7], SundayWeekdayFlag)

		services = append(services, &Service{
			ID:        record[0],
			Weekdays:  weekdays,
			StartDate: startDate,
			EndDate:   endDate,
		})
	}

	return services, nil
}
