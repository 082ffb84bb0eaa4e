package responses

import (
	"context"
	"fmt"
	"net/http"

	"github.com/xuri/excelize/v2"

	"github.com/harvestdesk/farmops-backend/pkg/logger"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// WriteXLSX streams the workbook as an attachment and closes it.
func WriteXLSX(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, f *excelize.File, filename string) {
	defer func() {
		if err := f.Close(); err != nil && logg != nil {
			logg.Error(ctx, "close workbook", err)
		}
	}()

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.WriteHeader(http.StatusOK)
	if _, err := f.WriteTo(w); err != nil && logg != nil {
		logg.Error(ctx, "write workbook", err)
	}
}
