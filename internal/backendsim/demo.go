package backendsim

import (
	"github.com/equiptrack/maintsync/internal/model"
)

// Demo accounts created by SeedDemo.
const (
	DemoAdminUser     = "admin"
	DemoAdminPassword = "admin123"
	DemoTechUser      = "tech"
	DemoTechPassword  = "tech123"
	DemoPendingUser   = "newbie"
)

// DemoGroups is a single production line with two devices and a short log.
func DemoGroups() []model.DeviceGroup {
	return []model.DeviceGroup{
		{
			Table: "Line A",
			Devices: model.DeviceRows{Rows: []model.DeviceRow{
				{ID: "1", Name: "LA-PUMP-01", Type: "pump", Freq: "30"},
				{ID: "2", Name: "LA-FAN-02", Type: "fan", Freq: "90"},
			}},
			History: model.HistoryRows{Rows: []model.HistoryRow{
				{DeviceName: "LA-PUMP-01", Date: "10-02-26", Content: "Thay dầu"},
				{DeviceName: "LA-FAN-02", Date: "14-02-26", Content: "Vệ sinh cánh quạt"},
				{DeviceName: "LA-PUMP-01", Date: "25-02-26", Content: "Thay dây curoa"},
			}},
		},
	}
}

// SeedDemo loads the demo accounts and DemoGroups.
func (s *Server) SeedDemo() error {
	seeds := []SeedUser{
		{Username: DemoAdminUser, Password: DemoAdminPassword, FullName: "Quản trị viên", Code: "AD001", Role: "admin"},
		{Username: DemoTechUser, Password: DemoTechPassword, FullName: "Kỹ thuật viên", Code: "KT001", Role: "user"},
		{Username: DemoPendingUser, Password: "newbie123", FullName: "Nhân viên mới", Code: "NV001", Pending: true},
	}
	for _, u := range seeds {
		if _, err := s.AddUser(u); err != nil {
			return err
		}
	}
	s.SetGroups(DemoGroups())
	return nil
}
