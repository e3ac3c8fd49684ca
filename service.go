package gtfs

import (
	"slices"
	"strings"

	"github.com/aaroncutress/gtfs-itineraries/internal/csvtab"
	"github.com/aaroncutress/gtfs-itineraries/internal/jkey"
	"github.com/aaroncutress/gtfs-itineraries/models"
	"github.com/charmbracelet/log"
	"github.com/hashicorp/go-set/v3"
)

// Returns the active service keys for every date covered by calendar.txt and
// calendar_dates.txt, sorted per date
func loadServicesByDate(dir string) (map[string][]string, error) {
	active := make(map[string]*set.Set[string])
	dateSet := func(date string) *set.Set[string] {
		s, ok := active[date]
		if !ok {
			s = set.New[string](0)
			active[date] = s
		}
		return s
	}

	hasCalendar := csvtab.Exists(dir, models.ServiceSchema{}.Name())
	hasExceptions := csvtab.Exists(dir, models.ServiceExceptionSchema{}.Name())
	if !hasCalendar && !hasExceptions {
		log.Warnf("No calendar.txt or calendar_dates.txt in %s, no services by date", dir)
		return map[string][]string{}, nil
	}

	// Expand every service over its date range
	if hasCalendar {
		services, err := models.ParseServices(dir)
		if err != nil {
			return nil, err
		}
		log.Infof("Loaded %d services", len(services))

		for _, service := range services {
			key := jkey.Of(service.ID)
			for day := service.StartDate; !day.After(service.EndDate); day = day.AddDate(0, 0, 1) {
				s := dateSet(day.Format(models.DateLayout))
				if service.RunsOn(day.Weekday()) {
					s.Insert(key)
				}
			}
		}
	}

	// Apply additions and removals
	if hasExceptions {
		exceptions, err := models.ParseServiceExceptions(dir)
		if err != nil {
			return nil, err
		}
		log.Infof("Loaded %d service exceptions", len(exceptions))

		for _, exception := range exceptions {
			key := jkey.Of(exception.ServiceID)
			s := dateSet(exception.Date.Format(models.DateLayout))
			switch exception.Type {
			case models.AddedExceptionType:
				s.Insert(key)
			case models.RemovedExceptionType:
				s.Remove(key)
			}
		}
	}

	byDate := make(map[string][]string, len(active))
	for date, s := range active {
		keys := s.Slice()
		slices.Sort(keys)
		byDate[date] = keys
	}

	log.Infof("Ready to serve services for %d dates", len(byDate))
	return byDate, nil
}

// Joins serialized values into one list
func joinList(values []string) string {
	return "[" + strings.Join(values, ", ") + "]"
}
