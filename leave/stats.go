package leave

import (
	"sort"

	"github.com/warp/leave-engine/calendar"
)

// =============================================================================
// DASHBOARD STATISTICS
// =============================================================================

// Stats is the aggregate view behind the HR statistics dashboard.
type Stats struct {
	Total               int               `json:"total"`
	ByStatus            map[Status]int    `json:"by_status"`
	ByDepartment        []DepartmentStats `json:"by_department"`
	ApprovedDaysByMonth map[string]int    `json:"approved_days_by_month"`
	TopRequesters       []RequesterStats  `json:"top_requesters"`
}

type DepartmentStats struct {
	Department   string `json:"department"`
	Employees    int    `json:"employees"`
	Pending      int    `json:"pending"`
	Approved     int    `json:"approved"`
	Rejected     int    `json:"rejected"`
	ApprovedDays int    `json:"approved_days"`
}

type RequesterStats struct {
	EmployeeID EmployeeID `json:"employee_id"`
	Name       string     `json:"name"`
	Requests   int        `json:"requests"`
	Days       int        `json:"days"`
}

const topRequesters = 5

// ComputeStats aggregates a snapshot. Day counts come from cal so the
// dashboard agrees with the evaluator. Approved days are attributed to the
// month each chargeable day falls in.
func ComputeStats(snap Snapshot, cal *calendar.Calendar) Stats {
	st := Stats{
		ByStatus:            map[Status]int{StatusPending: 0, StatusApproved: 0, StatusRejected: 0},
		ApprovedDaysByMonth: map[string]int{},
	}

	employees := make(map[EmployeeID]Employee, len(snap.Employees))
	depts := map[string]*DepartmentStats{}
	dept := func(name string) *DepartmentStats {
		ds, ok := depts[name]
		if !ok {
			ds = &DepartmentStats{Department: name}
			depts[name] = ds
		}
		return ds
	}
	for _, e := range snap.Employees {
		employees[e.ID] = e
		dept(e.Department).Employees++
	}

	requesters := map[EmployeeID]*RequesterStats{}
	for _, r := range snap.Requests {
		st.Total++
		st.ByStatus[r.Status]++

		days := cal.CountChargeableDays(r.StartDate, r.EndDate)
		emp, known := employees[r.EmployeeID]

		rs, ok := requesters[r.EmployeeID]
		if !ok {
			rs = &RequesterStats{EmployeeID: r.EmployeeID, Name: emp.Name}
			requesters[r.EmployeeID] = rs
		}
		rs.Requests++

		var ds *DepartmentStats
		if known {
			ds = dept(emp.Department)
		}
		switch r.Status {
		case StatusPending:
			if ds != nil {
				ds.Pending++
			}
		case StatusRejected:
			if ds != nil {
				ds.Rejected++
			}
		case StatusApproved:
			rs.Days += days
			if ds != nil {
				ds.Approved++
				ds.ApprovedDays += days
			}
			for _, day := range cal.ChargeableDays(r.StartDate, r.EndDate) {
				st.ApprovedDaysByMonth[day.Time().Format("2006-01")]++
			}
		}
	}

	for _, ds := range depts {
		st.ByDepartment = append(st.ByDepartment, *ds)
	}
	sort.Slice(st.ByDepartment, func(i, j int) bool {
		return st.ByDepartment[i].Department < st.ByDepartment[j].Department
	})

	for _, rs := range requesters {
		st.TopRequesters = append(st.TopRequesters, *rs)
	}
	sort.Slice(st.TopRequesters, func(i, j int) bool {
		a, b := st.TopRequesters[i], st.TopRequesters[j]
		if a.Days != b.Days {
			return a.Days > b.Days
		}
		if a.Requests != b.Requests {
			return a.Requests > b.Requests
		}
		return a.EmployeeID < b.EmployeeID
	})
	if len(st.TopRequesters) > topRequesters {
		st.TopRequesters = st.TopRequesters[:topRequesters]
	}
	return st
}
