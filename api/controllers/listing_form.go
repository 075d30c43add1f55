package controllers

import (
	"mime/multipart"

	"github.com/angelmondragon/geodirectory-backend/api/validators"
	"github.com/angelmondragon/geodirectory-backend/internal/listings"
	"github.com/angelmondragon/geodirectory-backend/pkg/enums"
	"github.com/angelmondragon/geodirectory-backend/pkg/types"
)

// Multipart field names of the listing form.
const (
	formTitle          = "title"
	formCategoryID     = "categoryId"
	formListingTypeID  = "listingTypeId"
	formLat            = "lat"
	formLng            = "lng"
	formAddress        = "address"
	formProvinceID     = "provinceId"
	formLocalityID     = "localityId"
	formProvinceName   = "provinceName"
	formCityName       = "cityName"
	formDetails        = "details"
	formDeleteCover    = "deleteCoverImage"
	formGalleryDeletes = "galleryImagesToDelete"
)

// ListingFormLimits bounds a listing upload.
type ListingFormLimits struct {
	MaxBodyBytes    int64
	MaxGalleryFiles int
}

func parseCreateForm(form *multipart.Form) (listings.CreateInput, error) {
	var input listings.CreateInput
	var err error

	input.Title, _ = validators.FormString(form, formTitle)
	input.CategoryID, _ = validators.FormString(form, formCategoryID)
	input.ListingType, _ = validators.FormString(form, formListingTypeID)
	input.Address, _ = validators.FormString(form, formAddress)
	input.ProvinceID, _ = validators.FormString(form, formProvinceID)
	input.LocalityID, _ = validators.FormString(form, formLocalityID)
	input.ProvinceName, _ = validators.FormString(form, formProvinceName)
	input.CityName, _ = validators.FormString(form, formCityName)

	if input.Latitude, err = validators.FormFloat(form, formLat); err != nil {
		return listings.CreateInput{}, err
	}
	if input.Longitude, err = validators.FormFloat(form, formLng); err != nil {
		return listings.CreateInput{}, err
	}

	details := types.Details{}
	if _, err := validators.FormJSON(form, formDetails, &details); err != nil {
		return listings.CreateInput{}, err
	}
	input.Details = details
	return input, nil
}

func parseUpdateForm(form *multipart.Form) (listings.UpdateInput, error) {
	var input listings.UpdateInput
	var err error

	input.Title = optionalString(form, formTitle)
	input.CategoryID = optionalString(form, formCategoryID)
	input.ListingType = optionalString(form, formListingTypeID)
	input.Address = optionalString(form, formAddress)
	input.ProvinceID = optionalString(form, formProvinceID)
	input.LocalityID = optionalString(form, formLocalityID)
	input.ProvinceName = optionalString(form, formProvinceName)
	input.CityName = optionalString(form, formCityName)

	if input.Latitude, err = validators.FormFloat(form, formLat); err != nil {
		return listings.UpdateInput{}, err
	}
	if input.Longitude, err = validators.FormFloat(form, formLng); err != nil {
		return listings.UpdateInput{}, err
	}

	var details types.Details
	sent, err := validators.FormJSON(form, formDetails, &details)
	if err != nil {
		return listings.UpdateInput{}, err
	}
	if sent {
		if details == nil {
			details = types.Details{}
		}
		input.Details = details
	}
	return input, nil
}

func parseFileChanges(form *multipart.Form, maxGallery int) (listings.FileChanges, error) {
	var changes listings.FileChanges

	covers, err := validators.FormFiles(form, enums.AssetRoleCover.String(), 1)
	if err != nil {
		return changes, err
	}
	if len(covers) == 1 {
		changes.Cover = &listings.Upload{Name: covers[0].Name, Data: covers[0].Data}
	}

	gallery, err := validators.FormFiles(form, enums.AssetRoleGallery.String(), maxGallery)
	if err != nil {
		return changes, err
	}
	for _, file := range gallery {
		changes.Gallery = append(changes.Gallery, listings.Upload{Name: file.Name, Data: file.Data})
	}

	changes.DeleteCover = validators.FormBool(form, formDeleteCover)
	if _, err := validators.FormJSON(form, formGalleryDeletes, &changes.DeleteGallery); err != nil {
		return changes, err
	}
	return changes, nil
}

func optionalString(form *multipart.Form, key string) *string {
	value, ok := validators.FormString(form, key)
	if !ok {
		return nil
	}
	return &value
}
