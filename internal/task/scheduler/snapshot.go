package scheduler

import "sort"

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{Running: s.running, Timezone: s.loc.String()}
	for _, d := range s.crons {
		it := ScheduleInfo{Name: d.name, Kind: "cron", Spec: d.spec, Timeout: d.timeout}
		if s.c != nil && d.entryID != 0 {
			e := s.c.Entry(d.entryID)
			it.Next, it.Prev = e.Next, e.Prev
		}
		snap.Schedules = append(snap.Schedules, it)
	}
	for name, d := range s.once {
		snap.Schedules = append(snap.Schedules, ScheduleInfo{
			Name:    name,
			Kind:    "once",
			Spec:    d.at.In(s.loc).Format("2006-01-02 15:04:05"),
			Timeout: d.timeout,
			Next:    d.at,
		})
	}
	sort.SliceStable(snap.Schedules, func(i, j int) bool { return snap.Schedules[i].Name < snap.Schedules[j].Name })
	return snap
}
