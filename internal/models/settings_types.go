package models

// Known setting keys. Settings are free-form, these are the ones the core reads.
const (
	SettingStoreName          = "storeName"
	SettingStoreEmail         = "storeEmail"
	SettingCurrency           = "currency"
	SettingTimezone           = "timezone"
	SettingLanguage           = "language"
	SettingEmailNotifications = "emailNotifications"
	SettingLowStockAlerts     = "lowStockAlerts"
	SettingMaintenanceMode    = "maintenance_mode"
)

// DefaultSettings fill keys that were never written.
func DefaultSettings() map[string]string {
	return map[string]string{
		SettingStoreName:          "VisionCraft",
		SettingStoreEmail:         "admin@visioncraft.com",
		SettingCurrency:           "USD",
		SettingTimezone:           "UTC",
		SettingLanguage:           "en",
		SettingEmailNotifications: "true",
		SettingLowStockAlerts:     "true",
		SettingMaintenanceMode:    "false",
	}
}
