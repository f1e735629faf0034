package storage

import (
	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/types"
	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/utils"
)

func encodeSettings(settings *types.Settings) ([]byte, error) {
	if settings.Version == 0 {
		copied := *settings
		copied.Version = types.SettingsVersion
		settings = &copied
	}

	data, err := utils.Marshal(settings)
	if err != nil {
		return nil, types.WrapError(err, "failed to encode settings")
	}
	return data, nil
}

// decodeSettings accepts records without a version as the current one and
// rejects records written by a newer build.
func decodeSettings(data []byte) (*types.Settings, error) {
	if len(data) == 0 {
		return nil, types.ErrSettingsNotFound
	}

	var settings types.Settings
	if err := utils.Unmarshal(data, &settings); err != nil {
		return nil, types.Errorf(types.ErrSettingsCorrupted, "%v", err)
	}

	if settings.Version == 0 {
		settings.Version = types.SettingsVersion
	}
	if settings.Version > types.SettingsVersion {
		return nil, types.Errorf(types.ErrSettingsCorrupted, "unsupported settings version %d", settings.Version)
	}

	return &settings, nil
}
