package handlers

type VideoPayload = videoPayload
